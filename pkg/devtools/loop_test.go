package devtools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/eventreduce/pkg/reactive"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return l
}

func TestLoopDo(t *testing.T) {
	l := startLoop(t)

	ran := false
	if err := l.Do(context.Background(), func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected function to run")
	}

	want := errors.New("boom")
	if err := l.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestLoopDoRecoversPanic(t *testing.T) {
	l := startLoop(t)

	err := l.Do(context.Background(), func() error { panic("bad") })
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("expected panic error, got %v", err)
	}

	// The loop keeps running after a panic.
	if err := l.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoopDispatchRecoversPanic(t *testing.T) {
	l := startLoop(t)

	if err := l.Dispatch(func() { panic("bad") }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("loop stopped after dispatch panic: %v", err)
	}
}

func TestLoopClosed(t *testing.T) {
	l := NewLoop(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if err := l.Dispatch(func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed, got %v", err)
	}
	if err := l.Do(context.Background(), func() error { return nil }); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed, got %v", err)
	}
}

func TestLoopQueueFull(t *testing.T) {
	l := NewLoop(1, nil)

	if err := l.Dispatch(func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Dispatch(func() {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestLoopDoContextTimeout(t *testing.T) {
	l := NewLoop(1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestLoopFlushesDeferredScheduler(t *testing.T) {
	s := reactive.NewDeferredScheduler()
	restore := reactive.SetScheduler(s)
	defer restore()

	l := startLoop(t)

	ran := 0
	err := l.Do(context.Background(), func() error {
		reactive.AddReaction(func() { ran++ })
		if ran != 0 {
			t.Error("reaction ran before the dispatch returned")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != 1 {
		t.Errorf("expected reaction to run once, ran %d", ran)
	}
	if s.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", s.Pending())
	}
}
