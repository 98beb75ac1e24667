package devtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// ErrLoopClosed is returned when work is dispatched to a stopped loop.
var ErrLoopClosed = errors.New("devtools: loop closed")

// ErrQueueFull is returned when the dispatch queue is full.
var ErrQueueFull = errors.New("devtools: dispatch queue full")

// Loop confines every engine access to a single goroutine.
//
// The engine is not safe for concurrent use. HTTP handlers and websocket
// clients dispatch functions to the loop, which runs them one at a time and
// flushes the installed scheduler after each one.
type Loop struct {
	dispatchCh chan func()
	done       chan struct{}
	logger     *slog.Logger
}

// NewLoop creates a loop with a dispatch queue of the given capacity.
func NewLoop(queue int, logger *slog.Logger) *Loop {
	if queue <= 0 {
		queue = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		dispatchCh: make(chan func(), queue),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes dispatched functions until ctx is done. It must be called
// once, from the goroutine that owns the engine.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case fn := <-l.dispatchCh:
			l.executeDispatch(fn)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// executeDispatch runs fn with panic recovery, then flushes reactions
// queued by a deferred scheduler.
func (l *Loop) executeDispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	fn()
	l.flush()
}

func (l *Loop) flush() {
	if s, ok := reactive.CurrentScheduler().(*reactive.DeferredScheduler); ok {
		if _, err := s.Flush(); err != nil {
			l.logger.Error("reaction flush failed", "error", err)
		}
	}
}

// Dispatch queues fn without waiting for it to run.
func (l *Loop) Dispatch(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.dispatchCh <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	default:
		l.logger.Warn("dispatch queue full, discarding callback")
		return ErrQueueFull
	}
}

// Do runs fn on the loop and waits for it to finish or for ctx to be done.
// A panic in fn is returned as an error.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	err := l.Dispatch(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				if e, ok := r.(error); ok {
					err = e
				} else {
					err = fmt.Errorf("panic: %v", r)
				}
			}
			result <- err
		}()
		err = fn()
		l.flush()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	}
}
