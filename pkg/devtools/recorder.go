package devtools

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxChanges bounds the number of records a Recorder keeps.
const DefaultMaxChanges = 10000

// Recording is a devtools session: the change records observed between
// the start of the recorder and the snapshot.
type Recording struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended"`
	Dropped int       `json:"dropped,omitempty"`
	Changes []Change  `json:"changes"`
}

// Encode writes the recording as JSON.
func (r Recording) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Recorder keeps the most recent change records of a session.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	id      string
	started time.Time
	max     int
	changes []Change
	dropped int
}

// NewRecorder creates a recorder keeping at most max records. Older
// records are dropped first.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = DefaultMaxChanges
	}
	return &Recorder{
		id:      uuid.NewString(),
		started: time.Now(),
		max:     max,
	}
}

// ID returns the session identifier.
func (r *Recorder) ID() string {
	return r.id
}

// Record appends ch.
func (r *Recorder) Record(ch Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == r.max {
		copy(r.changes, r.changes[1:])
		r.changes = r.changes[:len(r.changes)-1]
		r.dropped++
	}
	r.changes = append(r.changes, ch)
}

// Len returns the number of kept records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

// Snapshot returns a copy of the session so far.
func (r *Recorder) Snapshot() Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	changes := make([]Change, len(r.changes))
	copy(changes, r.changes)
	return Recording{
		ID:      r.id,
		Started: r.started,
		Ended:   time.Now(),
		Dropped: r.dropped,
		Changes: changes,
	}
}

// Reset starts a new session with a fresh identifier.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = uuid.NewString()
	r.started = time.Now()
	r.changes = nil
	r.dropped = 0
}
