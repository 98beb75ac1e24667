package reactive

// frame records the cells read during one tracked computation.
type frame struct {
	suppressed bool
	seen       map[uint64]struct{}
	cells      []Observable
}

// Tracker is a stack of recording frames.
//
// Track pushes a frame, runs a computation and pops the frame again on every
// exit path, panics included, so the stack is empty whenever no tracked
// computation is running. Frames nest: a derivation recomputing inside
// another computation records into its own frame, and the outer frame only
// sees the derivation itself.
type Tracker struct {
	frames []*frame
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// tracker is the process-wide tracker used by every cell.
var tracker = NewTracker()

// Depth returns the number of frames currently on the stack.
func (t *Tracker) Depth() int {
	return len(t.frames)
}

// Active reports whether a read would be recorded right now.
func (t *Tracker) Active() bool {
	if len(t.frames) == 0 {
		return false
	}
	return !t.frames[len(t.frames)-1].suppressed
}

// Track runs fn inside a fresh frame and returns the cells it read,
// deduplicated, in first-read order.
func (t *Tracker) Track(fn func()) []Observable {
	f := &frame{seen: make(map[uint64]struct{})}
	t.push(f)
	defer t.pop(f)

	fn()
	return f.cells
}

// WithoutTracking runs fn with recording suppressed. Reads inside fn are
// not recorded by fn's frame nor by any outer frame. Computations started
// inside fn (derivation recomputes) still track their own reads.
func (t *Tracker) WithoutTracking(fn func()) {
	f := &frame{suppressed: true}
	t.push(f)
	defer t.pop(f)

	fn()
}

// Record adds o to the top frame. It is a no-op when no frame is active or
// when recording is suppressed, and when o was already recorded by that
// frame.
func (t *Tracker) Record(o Observable) {
	if len(t.frames) == 0 {
		return
	}
	f := t.frames[len(t.frames)-1]
	if f.suppressed {
		return
	}
	id := o.ID()
	if _, ok := f.seen[id]; ok {
		return
	}
	f.seen[id] = struct{}{}
	f.cells = append(f.cells, o)
}

func (t *Tracker) push(f *frame) {
	t.frames = append(t.frames, f)
}

func (t *Tracker) pop(f *frame) {
	n := len(t.frames)
	if n == 0 || t.frames[n-1] != f {
		panic("eventreduce: unbalanced tracking frame")
	}
	t.frames[n-1] = nil
	t.frames = t.frames[:n-1]
}

// =============================================================================
// Package-level tracking API
// =============================================================================

// CollectAccessedValues runs fn in a new tracking frame and returns the
// cells it read.
func CollectAccessedValues(fn func()) []Observable {
	return tracker.Track(fn)
}

// WithInnerTrackingScope runs fn in a new, discarded tracking frame. Reads
// inside fn do not leak into the enclosing computation. Use it to read a
// cell for comparison without creating a dependency edge.
func WithInnerTrackingScope(fn func()) {
	tracker.Track(fn)
}

// WithoutTracking runs fn with recording suppressed.
func WithoutTracking(fn func()) {
	tracker.WithoutTracking(fn)
}

// Untracked returns fn's result, read without recording any access.
//
// Example:
//
//	current := reactive.Untracked(count.Get)
func Untracked[T any](fn func() T) T {
	var v T
	tracker.WithoutTracking(func() { v = fn() })
	return v
}

// TrackingDepth returns the depth of the process-wide frame stack.
// It is zero whenever no tracked computation is running.
func TrackingDepth() int {
	return tracker.Depth()
}

// IsTracking reports whether reads are currently being recorded.
func IsTracking() bool {
	return tracker.Active()
}

// =============================================================================
// Last constructed cell
// =============================================================================

// lastAccessed holds the most recently constructed cell until consumed.
var lastAccessed Observable

func setLastAccessed(o Observable) {
	lastAccessed = o
}

// ConsumeLastAccessed returns the most recently constructed cell and clears
// the slot, or returns nil when the slot is empty.
//
// Container layers use it to recover the cell behind a value that was just
// produced by a constructor:
//
//	v := reactive.Reduce(0).On(...).Get()
//	cell := reactive.ConsumeLastAccessed() // the reduction above
func ConsumeLastAccessed() Observable {
	o := lastAccessed
	lastAccessed = nil
	return o
}
