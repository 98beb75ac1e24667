package demo

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// Step is one event fired by the scenario.
type Step struct {
	Name string
	Fire func(c *Counter)
}

// Steps is the scripted counter session run by the demo command.
var Steps = []Step{
	{"increment by 1", func(c *Counter) { c.Increment.Fire(1) }},
	{"increment by 2", func(c *Counter) { c.Increment.Fire(2) }},
	{"decrement by 3", func(c *Counter) { c.Decrement.Fire(3) }},
	{"reset at zero", func(c *Counter) { c.Reset.Fire(struct{}{}) }},
	{"increment by 5 twice", func(c *Counter) {
		c.Increment.Fire(5)
		c.Increment.Fire(5)
	}},
}

// Result summarizes a scenario run.
type Result struct {
	Renders int
	Outputs []string
	Values  map[string]any
}

// Run mounts the counter view, fires every step and writes one line per
// render to out. Engine debug records go to logger when it is non-nil.
func Run(out io.Writer, logger *slog.Logger) (Result, error) {
	if logger != nil {
		prev := reactive.Logger()
		reactive.SetLogger(logger)
		defer reactive.SetLogger(prev)
	}

	c := NewCounter("Counter")
	view := c.View()
	defer view.Close()

	var res Result
	view.OnRender(func(s string) {
		res.Outputs = append(res.Outputs, s)
		fmt.Fprintf(out, "  render: %s\n", s)
	})

	first := view.Mount()
	res.Outputs = append(res.Outputs, first)
	fmt.Fprintf(out, "  mount:  %s\n", first)

	for _, step := range Steps {
		fmt.Fprintf(out, "%s\n", step.Name)
		// One batch per step keeps the view from rendering between the
		// invalidations of a diamond (Count feeds Parity and Summary).
		if err := reactive.Catch(func() { reactive.Batch(func() { step.Fire(c) }) }); err != nil {
			return res, err
		}
		if s, ok := reactive.CurrentScheduler().(*reactive.DeferredScheduler); ok {
			if _, err := s.Flush(); err != nil {
				return res, err
			}
		}
	}

	res.Renders = view.Renders()
	res.Values = c.Values()
	return res, nil
}
