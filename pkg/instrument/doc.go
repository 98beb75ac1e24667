// Package instrument provides production-grade engine hooks.
//
// This package includes:
//   - Prometheus metrics hooks
//   - OpenTelemetry tracing hooks
//   - Multi, to install several hooks at once
//
// Hooks are installed process-wide with reactive.SetHooks:
//
//	restore := reactive.SetHooks(instrument.Multi(
//	    instrument.NewMetrics(instrument.WithNamespace("myapp")),
//	    instrument.NewTracing(instrument.WithTracerName("myapp")),
//	))
//	defer restore()
//
// # Prometheus Metrics
//
// NewMetrics registers counters and histograms for notifications,
// invalidations, recomputes, cycles, reductions, watcher runs and scheduler
// flushes. Pass WithRegistry to use a registry other than
// prometheus.DefaultRegisterer; registering twice on the same registry
// panics.
//
// # OpenTelemetry Tracing
//
// NewTracing records one span per derivation recompute, watcher run and
// scheduler flush. Failed recomputes carry the error and an Error status.
package instrument
