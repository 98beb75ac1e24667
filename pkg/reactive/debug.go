package reactive

import (
	"fmt"
	"log/slog"
)

var logger *slog.Logger

// SetLogger sets the logger used for engine diagnostics.
// If nil, slog.Default() is used.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the logger used for engine diagnostics.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// cellAttrs returns the common log attributes for a cell.
func cellAttrs(o Observable) slog.Attr {
	return slog.Group("cell",
		"label", o.Label(),
		"id", o.ID(),
		"kind", o.Kind().String(),
	)
}

// SourceNode is one entry of a dependency tree, as produced by SourceTree.
type SourceNode struct {
	ID      uint64       `json:"id"`
	Label   string       `json:"label"`
	Kind    string       `json:"kind"`
	Value   string       `json:"value"`
	Sources []SourceNode `json:"sources,omitempty"`
}

// sourcer is implemented by cells and watchers that depend on other cells.
type sourcer interface {
	Sources() []Observable
}

// SourceTree describes cells and, recursively, the cells they were computed
// from. Values are read with Snapshot, so building a tree never recomputes
// and never records reads. A cell already on the current path is listed
// without its sources.
func SourceTree(cells []Observable) []SourceNode {
	return sourceTree(cells, map[uint64]bool{})
}

func sourceTree(cells []Observable, onPath map[uint64]bool) []SourceNode {
	if len(cells) == 0 {
		return nil
	}
	nodes := make([]SourceNode, 0, len(cells))
	for _, c := range cells {
		node := SourceNode{
			ID:    c.ID(),
			Label: c.Label(),
			Kind:  c.Kind().String(),
			Value: fmt.Sprint(c.Snapshot()),
		}
		if s, ok := c.(sourcer); ok && !onPath[c.ID()] {
			onPath[c.ID()] = true
			node.Sources = sourceTree(s.Sources(), onPath)
			delete(onPath, c.ID())
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// LogValue renders the node as a slog group.
func (n SourceNode) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", n.Kind),
		slog.String("value", n.Value),
	}
	for _, s := range n.Sources {
		attrs = append(attrs, slog.Any(s.Label, s))
	}
	return slog.GroupValue(attrs...)
}
