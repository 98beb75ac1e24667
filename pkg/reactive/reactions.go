package reactive

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxFlushRounds is the number of times a single flush may drain
// reactions queued by the reactions it ran before it gives up.
const DefaultMaxFlushRounds = 100

// Scheduler decides when requested reactions run.
type Scheduler interface {
	AddReaction(fn func())
}

// KeyedScheduler is a Scheduler that can coalesce reactions sharing a key.
type KeyedScheduler interface {
	Scheduler
	AddKeyedReaction(key any, fn func())
}

// Batcher is a Scheduler that can hold reactions until a batch completes.
type Batcher interface {
	Scheduler
	Batch(fn func())
}

type reaction struct {
	key any
	fn  func()
}

// reactionQueue is an ordered queue of pending reactions. Keyed entries
// keep the position of their first request and run the latest function.
type reactionQueue struct {
	items []reaction
	keyed map[any]int
}

func (q *reactionQueue) push(key any, fn func()) {
	if key != nil {
		if i, ok := q.keyed[key]; ok {
			q.items[i].fn = fn
			return
		}
		if q.keyed == nil {
			q.keyed = make(map[any]int)
		}
		q.keyed[key] = len(q.items)
	}
	q.items = append(q.items, reaction{key: key, fn: fn})
}

func (q *reactionQueue) take() []reaction {
	items := q.items
	q.items = nil
	q.keyed = nil
	return items
}

func (q *reactionQueue) len() int {
	return len(q.items)
}

// drain runs queued reactions until the queue stays empty. Reactions queued
// while draining run in a later round. Every reaction of a round runs even
// if an earlier one panicked; the first panic is re-raised at the end.
func (q *reactionQueue) drain(maxRounds int) (ran int, err error) {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxFlushRounds
	}
	start := time.Now()

	var first any
	rounds := 0
	for q.len() > 0 {
		if rounds == maxRounds {
			dropped := q.len()
			q.take()
			err = fmt.Errorf("%w: %d reactions still queued after %d rounds", ErrReactionStorm, dropped, rounds)
			break
		}
		rounds++
		for _, r := range q.take() {
			if p := runReaction(r.fn); p != nil && first == nil {
				first = p
			}
			ran++
		}
	}

	currentHooks().ReactionsFlushed(ran, start, time.Since(start))
	Logger().Debug("reactions flushed",
		slog.Int("reactions", ran),
		slog.Int("rounds", rounds),
	)

	if first != nil {
		panic(first)
	}
	return ran, err
}

func runReaction(fn func()) (recovered any) {
	defer func() {
		recovered = recover()
	}()
	fn()
	return nil
}

// ImmediateScheduler runs every reaction synchronously when it is
// requested, except inside Batch where reactions are queued and run in
// request order when the outermost batch completes.
type ImmediateScheduler struct {
	// MaxFlushRounds bounds the end-of-batch flush.
	// Zero means DefaultMaxFlushRounds.
	MaxFlushRounds int

	depth   int
	pending reactionQueue
}

// NewImmediateScheduler creates the default scheduler.
func NewImmediateScheduler() *ImmediateScheduler {
	return &ImmediateScheduler{}
}

// AddReaction runs fn now, or queues it while a batch is open.
func (s *ImmediateScheduler) AddReaction(fn func()) {
	if s.depth > 0 {
		s.pending.push(nil, fn)
		return
	}
	fn()
}

// AddKeyedReaction is like AddReaction. Inside a batch, a later request
// with the same key replaces the queued function.
func (s *ImmediateScheduler) AddKeyedReaction(key any, fn func()) {
	if s.depth > 0 {
		s.pending.push(key, fn)
		return
	}
	fn()
}

// Batch runs fn with reactions held back. Batches can be nested; the queue
// is flushed when the outermost batch completes, even if fn panicked.
// A flush that exceeds MaxFlushRounds panics with an error wrapping
// ErrReactionStorm. When fn itself panicked, its panic is re-raised; an
// error panic is joined with the storm error, any other value wins and the
// storm is logged.
func (s *ImmediateScheduler) Batch(fn func()) {
	s.depth++
	defer func() {
		r := recover()
		s.depth--
		if s.depth > 0 {
			if r != nil {
				panic(r)
			}
			return
		}
		err := s.flush()
		switch {
		case r == nil && err == nil:
		case r == nil:
			panic(err)
		case err == nil:
			panic(r)
		default:
			if cause, ok := r.(error); ok {
				panic(errors.Join(cause, err))
			}
			Logger().Error("reaction flush failed after batch panic",
				slog.Any("panic", r),
				slog.Any("error", err),
			)
			panic(r)
		}
	}()
	fn()
}

// flush drains the queue with the batch still open, so reactions requested
// by reactions land in the next round.
func (s *ImmediateScheduler) flush() error {
	s.depth++
	defer func() { s.depth-- }()
	_, err := s.pending.drain(s.MaxFlushRounds)
	return err
}

// Depth returns the current batch nesting depth.
func (s *ImmediateScheduler) Depth() int {
	return s.depth
}

// Pending returns the number of queued reactions.
func (s *ImmediateScheduler) Pending() int {
	return s.pending.len()
}

// DeferredScheduler queues every reaction until Flush. Hosts call Flush at
// the end of each turn of their event loop.
type DeferredScheduler struct {
	// MaxFlushRounds bounds a single Flush.
	// Zero means DefaultMaxFlushRounds.
	MaxFlushRounds int

	pending reactionQueue
}

// NewDeferredScheduler creates a scheduler that runs nothing until Flush.
func NewDeferredScheduler() *DeferredScheduler {
	return &DeferredScheduler{}
}

// AddReaction queues fn.
func (s *DeferredScheduler) AddReaction(fn func()) {
	s.pending.push(nil, fn)
}

// AddKeyedReaction queues fn under key. Until the next Flush, a later
// request with the same key replaces the queued function.
func (s *DeferredScheduler) AddKeyedReaction(key any, fn func()) {
	s.pending.push(key, fn)
}

// Batch runs fn. Every reaction is deferred anyway.
func (s *DeferredScheduler) Batch(fn func()) {
	fn()
}

// Flush runs queued reactions, including those they queue, and returns how
// many ran. It returns an error wrapping ErrReactionStorm if the queue does
// not settle within MaxFlushRounds.
func (s *DeferredScheduler) Flush() (int, error) {
	return s.pending.drain(s.MaxFlushRounds)
}

// Pending returns the number of queued reactions.
func (s *DeferredScheduler) Pending() int {
	return s.pending.len()
}

var scheduler Scheduler = NewImmediateScheduler()

// SetScheduler installs s as the engine scheduler and returns a function
// restoring the previous one. A nil s installs a new ImmediateScheduler.
func SetScheduler(s Scheduler) (restore func()) {
	if s == nil {
		s = NewImmediateScheduler()
	}
	prev := scheduler
	scheduler = s
	return func() { scheduler = prev }
}

// CurrentScheduler returns the installed scheduler.
func CurrentScheduler() Scheduler {
	return scheduler
}

// AddReaction requests fn to run through the installed scheduler.
func AddReaction(fn func()) {
	scheduler.AddReaction(fn)
}

// AddKeyedReaction requests fn under key. Schedulers that cannot coalesce
// treat it as AddReaction.
func AddKeyedReaction(key any, fn func()) {
	if ks, ok := scheduler.(KeyedScheduler); ok {
		ks.AddKeyedReaction(key, fn)
		return
	}
	scheduler.AddReaction(fn)
}

// Batch groups writes so the reactions they request run once fn returns.
// Batches can be nested; reactions run when the outermost batch completes.
//
//	reactive.Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})
func Batch(fn func()) {
	if b, ok := scheduler.(Batcher); ok {
		b.Batch(fn)
		return
	}
	fn()
}
