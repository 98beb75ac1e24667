package reactive

// subscriptionSet holds one subscription per source cell and reconciles it
// against a freshly accessed set after every run.
type subscriptionSet struct {
	links map[uint64]Unsubscribe
	order []Observable
}

// sync subscribes handler to the cells in accessed that are not yet
// subscribed and drops the subscriptions of cells no longer accessed.
// Cells present in both sets keep their existing subscription.
func (s *subscriptionSet) sync(accessed []Observable, handler func()) (added, removed int) {
	next := make(map[uint64]Unsubscribe, len(accessed))
	for _, o := range accessed {
		id := o.ID()
		if unsub, ok := s.links[id]; ok {
			next[id] = unsub
			delete(s.links, id)
			continue
		}
		next[id] = o.Subscribe(handler)
		added++
	}
	for _, unsub := range s.links {
		unsub()
		removed++
	}
	s.links = next
	s.order = accessed
	return added, removed
}

// clear drops every subscription and returns how many were dropped.
func (s *subscriptionSet) clear() int {
	n := len(s.links)
	for _, unsub := range s.links {
		unsub()
	}
	s.links = nil
	s.order = nil
	return n
}

// len returns the number of live subscriptions.
func (s *subscriptionSet) len() int {
	return len(s.links)
}

// sources returns the subscribed cells in first-read order.
func (s *subscriptionSet) sources() []Observable {
	out := make([]Observable, len(s.order))
	copy(out, s.order)
	return out
}
