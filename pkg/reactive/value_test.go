package reactive

import (
	"strings"
	"testing"
)

func TestValueBasic(t *testing.T) {
	count := NewValue(0)

	if count.Get() != 0 {
		t.Errorf("expected initial value 0, got %d", count.Get())
	}

	count.Set(5)
	if count.Get() != 5 {
		t.Errorf("expected value 5, got %d", count.Get())
	}

	count.Update(func(n int) int { return n * 2 })
	if count.Get() != 10 {
		t.Errorf("expected value 10, got %d", count.Get())
	}
}

func TestValueNotifiesOnlyOnChange(t *testing.T) {
	count := NewValue(0)
	var c counter
	count.Subscribe(c.fn)

	count.Set(1)
	if c.n != 1 {
		t.Errorf("expected 1 notification, got %d", c.n)
	}

	count.Set(1)
	if c.n != 1 {
		t.Errorf("same value should not notify, got %d", c.n)
	}

	count.Set(2)
	if c.n != 2 {
		t.Errorf("expected 2 notifications, got %d", c.n)
	}
}

func TestValueSubscriberOrder(t *testing.T) {
	v := NewValue("a")
	var order []string
	v.Subscribe(func() { order = append(order, "first") })
	v.Subscribe(func() { order = append(order, "second") })
	v.Subscribe(func() { order = append(order, "third") })

	v.Set("b")

	if got := strings.Join(order, ","); got != "first,second,third" {
		t.Errorf("expected subscription order, got %s", got)
	}
}

func TestValueUnsubscribe(t *testing.T) {
	v := NewValue(0)
	var c counter
	unsub := v.Subscribe(c.fn)

	if v.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", v.SubscriberCount())
	}

	unsub()
	unsub()

	if v.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", v.SubscriberCount())
	}
	v.Set(1)
	if c.n != 0 {
		t.Errorf("expected no notification after unsubscribe, got %d", c.n)
	}
}

func TestValueUnsubscribeDuringNotify(t *testing.T) {
	v := NewValue(0)
	var second counter
	var unsubSecond Unsubscribe

	v.Subscribe(func() { unsubSecond() })
	unsubSecond = v.Subscribe(second.fn)

	v.Set(1)
	if second.n != 0 {
		t.Errorf("subscriber removed mid-notify should be skipped, got %d calls", second.n)
	}
}

func TestValueOnChange(t *testing.T) {
	v := NewValue("x")
	var got []string
	v.OnChange(func(s string) { got = append(got, s) })

	v.Set("y")
	v.Set("y")
	v.Set("z")

	if strings.Join(got, "") != "yz" {
		t.Errorf("expected [y z], got %v", got)
	}
}

func TestValueUpdateIsUntracked(t *testing.T) {
	v := NewValue(1)
	other := NewValue(10, WithLabel("other"))

	accessed := CollectAccessedValues(func() {
		v.Update(func(n int) int { return n + other.Get() })
	})

	if len(accessed) != 0 {
		t.Errorf("expected no accessed cells, got %v", labels(accessed))
	}
	if v.Peek() != 11 {
		t.Errorf("expected 11, got %d", v.Peek())
	}
}

func TestValueLabelAndContainer(t *testing.T) {
	owner := &struct{ name string }{"todo"}
	v := NewValue(0, WithLabel("count"), WithContainer(owner))

	if v.Label() != "count" {
		t.Errorf("expected label count, got %s", v.Label())
	}
	if v.Container() != owner {
		t.Errorf("expected container to be owner")
	}
	if v.Kind() != KindValue {
		t.Errorf("expected KindValue, got %s", v.Kind())
	}

	anon := NewValue(0)
	if !strings.HasPrefix(anon.Label(), "value#") {
		t.Errorf("expected default label value#<id>, got %s", anon.Label())
	}
}

func TestValueIDsAreUnique(t *testing.T) {
	seen := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		id := NewValue(i).ID()
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
