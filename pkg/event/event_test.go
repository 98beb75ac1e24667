package event

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/eventreduce/pkg/reactive"
)

func TestFireOrder(t *testing.T) {
	e := New[string]("ping")
	var got []string
	e.Subscribe(func(p string) { got = append(got, "a:"+p) })
	e.Subscribe(func(p string) { got = append(got, "b:"+p) })

	e.Fire("1")

	if diff := cmp.Diff([]string{"a:1", "b:1"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if e.Fired() != 1 {
		t.Errorf("expected Fired() 1, got %d", e.Fired())
	}
}

func TestUnsubscribe(t *testing.T) {
	e := New[int]("n")
	calls := 0
	unsub := e.Subscribe(func(int) { calls++ })

	unsub()
	unsub()
	e.Fire(1)

	if calls != 0 {
		t.Errorf("expected no calls, got %d", calls)
	}
	if e.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", e.SubscriberCount())
	}
}

func TestDefaultLabel(t *testing.T) {
	e := New[int]("")
	if !strings.HasPrefix(e.Label(), "event#") {
		t.Errorf("expected event#<id>, got %s", e.Label())
	}
	e.SetLabel("renamed")
	if e.Label() != "renamed" {
		t.Errorf("expected renamed, got %s", e.Label())
	}
}

func TestTryFireReturnsReducerError(t *testing.T) {
	e := New[int]("divide")
	r := reactive.Reduce(100, reactive.WithLabel("quotient")).
		On(reactive.When(e, func(v, d int) int { return v / d }))

	if err := e.TryFire(0); err == nil {
		t.Fatal("expected error")
	} else {
		var re *reactive.ReducerError
		if !errors.As(err, &re) {
			t.Fatalf("expected *reactive.ReducerError, got %T", err)
		}
		if re.Source != "divide" || re.Reduction != "quotient" {
			t.Errorf("unexpected labels: %+v", re)
		}
	}

	if err := e.TryFire(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Get() != 25 {
		t.Errorf("expected 25, got %d", r.Get())
	}
}

func TestFilterAndMap(t *testing.T) {
	numbers := New[int]("numbers")
	even := numbers.Filter(func(n int) bool { return n%2 == 0 })
	words := Map(even, func(n int) string { return strings.Repeat("x", n) })

	var got []string
	words.Subscribe(func(s string) { got = append(got, s) })

	for i := 1; i <= 4; i++ {
		numbers.Fire(i)
	}

	if diff := cmp.Diff([]string{"xx", "xxxx"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if words.Label() != "numbers.filter.map" {
		t.Errorf("unexpected label %s", words.Label())
	}
}

func TestMerge(t *testing.T) {
	a := New[string]("a")
	b := New[string]("b")
	both := Merge("both", a, b)

	last := reactive.Reduce("").On(reactive.When(both, func(_ string, p string) string { return p }))

	a.Fire("from a")
	if last.Get() != "from a" {
		t.Errorf("expected from a, got %s", last.Get())
	}
	b.Fire("from b")
	if last.Get() != "from b" {
		t.Errorf("expected from b, got %s", last.Get())
	}
}

func TestFireJSON(t *testing.T) {
	type payload struct {
		Amount int `json:"amount"`
	}
	deposit := New[payload]("deposit")
	balance := reactive.Reduce(0).On(reactive.When(deposit, func(b int, p payload) int { return b + p.Amount }))

	var f Firer = deposit
	if err := f.FireJSON([]byte(`{"amount": 5}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.FireJSON(nil); err != nil {
		t.Fatalf("unexpected error for empty payload: %v", err)
	}
	if err := f.FireJSON([]byte(`"nope"`)); err == nil {
		t.Error("expected decode error")
	}

	if balance.Get() != 5 {
		t.Errorf("expected 5, got %d", balance.Get())
	}
	if deposit.Fired() != 2 {
		t.Errorf("expected 2 fires, got %d", deposit.Fired())
	}
}
