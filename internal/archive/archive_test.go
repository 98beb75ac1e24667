package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/eventreduce/pkg/devtools"
)

func testRecording() devtools.Recording {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return devtools.Recording{
		ID:      "3f2b9c1e-session",
		Started: at,
		Ended:   at.Add(time.Minute),
		Changes: []devtools.Change{
			{Seq: 1, Time: at, Kind: devtools.ChangeFired, Label: "Counter.Increment", Value: "1"},
			{Seq: 2, Time: at, Kind: devtools.ChangeValue, CellID: 7, Label: "Count", Value: "1"},
		},
	}
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestEncodeDecode(t *testing.T) {
	rec := testRecording()

	body, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("recording mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not zstd"))); err == nil {
		t.Error("expected error for non-zstd input")
	}
}

func TestArchiveS3(t *testing.T) {
	fake := &fakeS3{}
	a := New(NewS3Store(fake, "sessions-bucket"), "/devtools/")

	key, err := a.Archive(context.Background(), testRecording())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if key != "devtools/3f2b9c1e-session.json.zst" {
		t.Errorf("unexpected key %q", key)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.ToString(in.Bucket) != "sessions-bucket" || aws.ToString(in.Key) != key {
		t.Errorf("unexpected destination %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentEncoding) != "zstd" {
		t.Errorf("expected zstd content encoding, got %q", aws.ToString(in.ContentEncoding))
	}

	got, err := Decode(bytes.NewReader(fake.bodies[0]))
	if err != nil {
		t.Fatalf("decode uploaded body: %v", err)
	}
	if got.ID != "3f2b9c1e-session" || len(got.Changes) != 2 {
		t.Errorf("unexpected uploaded recording %+v", got)
	}
}

func TestArchiveErrors(t *testing.T) {
	want := errors.New("access denied")
	a := New(NewS3Store(&fakeS3{err: want}, "b"), "")

	if _, err := a.Archive(context.Background(), testRecording()); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
	if _, err := a.Archive(context.Background(), devtools.Recording{}); err == nil {
		t.Error("expected error for recording without id")
	}
}

func TestArchiveDir(t *testing.T) {
	dir := t.TempDir()
	a := New(DirStore{Dir: dir}, "sessions")

	key, err := a.Archive(context.Background(), testRecording())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("open archived file: %v", err)
	}
	defer f.Close()

	got, err := Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != testRecording().ID {
		t.Errorf("unexpected id %q", got.ID)
	}
}
