package devtools

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRecorderDropsOldest(t *testing.T) {
	r := NewRecorder(3)
	for i := 1; i <= 5; i++ {
		r.Record(Change{Seq: uint64(i)})
	}

	rec := r.Snapshot()
	if rec.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", rec.Dropped)
	}
	var seqs []uint64
	for _, ch := range rec.Changes {
		seqs = append(seqs, ch.Seq)
	}
	if len(seqs) != 3 || seqs[0] != 3 || seqs[2] != 5 {
		t.Errorf("expected [3 4 5], got %v", seqs)
	}
}

func TestRecorderSnapshotIsCopy(t *testing.T) {
	r := NewRecorder(0)
	r.Record(Change{Seq: 1})

	rec := r.Snapshot()
	rec.Changes[0].Seq = 99

	if got := r.Snapshot().Changes[0].Seq; got != 1 {
		t.Errorf("snapshot aliases recorder state: got %d", got)
	}
}

func TestRecorderReset(t *testing.T) {
	r := NewRecorder(0)
	id := r.ID()
	r.Record(Change{Seq: 1})

	r.Reset()

	if r.ID() == id {
		t.Error("expected a new session id")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty recorder, got %d", r.Len())
	}
}

func TestRecordingEncode(t *testing.T) {
	r := NewRecorder(0)
	r.Record(Change{Seq: 1, Kind: ChangeValue, Label: "count", Value: "1"})

	var buf bytes.Buffer
	if err := r.Snapshot().Encode(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded Recording
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.ID != r.ID() || len(decoded.Changes) != 1 || decoded.Changes[0].Label != "count" {
		t.Errorf("unexpected recording %+v", decoded)
	}
}
