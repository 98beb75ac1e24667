package devtools

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/eventreduce/internal/listeners"
	"github.com/vango-dev/eventreduce/pkg/event"
	"github.com/vango-dev/eventreduce/pkg/model"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// ChangeKind classifies a change record.
type ChangeKind string

const (
	// ChangeValue means a value or reduction cell took a new value.
	ChangeValue ChangeKind = "value"

	// ChangeInvalidated means a derivation became dirty.
	ChangeInvalidated ChangeKind = "invalidated"

	// ChangeFired means an event fired through devtools.
	ChangeFired ChangeKind = "fired"
)

// Change is one entry of the live change stream.
type Change struct {
	Seq    uint64     `json:"seq"`
	Time   time.Time  `json:"time"`
	Kind   ChangeKind `json:"kind"`
	CellID uint64     `json:"cellId,omitempty"`
	Label  string     `json:"label"`
	Value  string     `json:"value,omitempty"`
}

// CellInfo describes an inspected cell.
type CellInfo struct {
	ID          uint64 `json:"id"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	Value       string `json:"value"`
	Subscribers int    `json:"subscribers"`
	State       string `json:"state,omitempty"`
	Model       string `json:"model,omitempty"`
}

// EventInfo describes an event that can be fired through devtools.
type EventInfo struct {
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
	Fired       uint64 `json:"fired"`
}

type inspected struct {
	cell        reactive.Observable
	model       string
	unsubscribe reactive.Unsubscribe
}

// Registry tracks the cells and events exposed by devtools and turns their
// changes into Change records.
//
// A Registry belongs to the engine goroutine; use it from Loop only.
type Registry struct {
	cells  map[uint64]*inspected
	order  []uint64
	events map[string]event.Firer
	seq    uint64
	now    func() time.Time

	changes listeners.List[Change]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cells:  make(map[uint64]*inspected),
		events: make(map[string]event.Firer),
		now:    time.Now,
	}
}

// Add starts inspecting cells. Cells already inspected are ignored.
func (r *Registry) Add(cells ...reactive.Observable) {
	r.add("", cells)
}

// AddModel inspects every cell of m and registers its events, named
// "<model>.<field>".
func (r *Registry) AddModel(m *model.Model) {
	r.add(m.Name(), m.Cells())
	for name, e := range model.EventsOf(m.Owner()) {
		if f, ok := e.(event.Firer); ok {
			r.AddEvent(m.Name()+"."+name, f)
		}
	}
}

func (r *Registry) add(modelName string, cells []reactive.Observable) {
	for _, c := range cells {
		c := c
		if _, ok := r.cells[c.ID()]; ok {
			continue
		}
		r.cells[c.ID()] = &inspected{
			cell:        c,
			model:       modelName,
			unsubscribe: c.Subscribe(func() { r.changed(c) }),
		}
		r.order = append(r.order, c.ID())
	}
}

// Remove stops inspecting the cell with the given id.
func (r *Registry) Remove(id uint64) bool {
	in, ok := r.cells[id]
	if !ok {
		return false
	}
	in.unsubscribe()
	delete(r.cells, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return true
}

// AddEvent registers e under name.
func (r *Registry) AddEvent(name string, e event.Firer) {
	r.events[name] = e
}

// Events returns the registered events sorted by name.
func (r *Registry) Events() []EventInfo {
	out := make([]EventInfo, 0, len(r.events))
	for name, e := range r.events {
		out = append(out, EventInfo{Name: name, Subscribers: e.SubscriberCount(), Fired: e.Fired()})
	}
	slices.SortFunc(out, func(a, b EventInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Fire fires the event registered under name with a JSON payload.
func (r *Registry) Fire(name string, payload []byte) error {
	e, ok := r.events[name]
	if !ok {
		return fmt.Errorf("%w: event %q", ErrNotFound, name)
	}
	r.emit(Change{Kind: ChangeFired, Label: name, Value: string(payload)})
	return e.FireJSON(payload)
}

// OnChange registers fn to receive every change record.
func (r *Registry) OnChange(fn func(Change)) reactive.Unsubscribe {
	return r.changes.Add(fn)
}

// Len returns the number of inspected cells.
func (r *Registry) Len() int {
	return len(r.order)
}

// Cells describes every inspected cell in registration order.
func (r *Registry) Cells() []CellInfo {
	out := make([]CellInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.info(r.cells[id]))
	}
	return out
}

// Cell describes the inspected cell with the given id.
func (r *Registry) Cell(id uint64) (CellInfo, error) {
	in, ok := r.cells[id]
	if !ok {
		return CellInfo{}, fmt.Errorf("%w: cell %d", ErrNotFound, id)
	}
	return r.info(in), nil
}

// Sources returns the dependency tree of the inspected cell with the given
// id.
func (r *Registry) Sources(id uint64) ([]reactive.SourceNode, error) {
	in, ok := r.cells[id]
	if !ok {
		return nil, fmt.Errorf("%w: cell %d", ErrNotFound, id)
	}
	return reactive.SourceTree([]reactive.Observable{in.cell}), nil
}

// Close stops inspecting every cell.
func (r *Registry) Close() {
	for _, in := range r.cells {
		in.unsubscribe()
	}
	r.cells = make(map[uint64]*inspected)
	r.order = nil
	r.changes.Clear()
}

func (r *Registry) info(in *inspected) CellInfo {
	c := in.cell
	info := CellInfo{
		ID:    c.ID(),
		Label: c.Label(),
		Kind:  c.Kind().String(),
		Value: fmt.Sprint(c.Snapshot()),
		// Exclude the registry's own subscription.
		Subscribers: c.SubscriberCount() - 1,
		Model:       in.model,
	}
	if s, ok := c.(interface{ State() reactive.State }); ok {
		info.State = s.State().String()
	}
	return info
}

func (r *Registry) changed(c reactive.Observable) {
	ch := Change{CellID: c.ID(), Label: c.Label()}
	if c.Kind() == reactive.KindDerivation {
		if s, ok := c.(interface{ State() reactive.State }); ok && s.State() == reactive.StateDirty {
			ch.Kind = ChangeInvalidated
			r.emit(ch)
			return
		}
	}
	ch.Kind = ChangeValue
	ch.Value = fmt.Sprint(c.Snapshot())
	r.emit(ch)
}

func (r *Registry) emit(ch Change) {
	r.seq++
	ch.Seq = r.seq
	ch.Time = r.now()
	r.changes.Emit(ch)
}

// parseID parses a cell id path parameter.
func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid cell id %q", ErrBadRequest, s)
	}
	return id, nil
}
