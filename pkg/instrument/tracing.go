package instrument

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// Default tracer name for engine spans.
const defaultTracerName = "eventreduce"

// TracingConfig configures the OpenTelemetry engine hooks.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "eventreduce").
	TracerName string

	// Provider is the tracer provider.
	// Default: the global provider from otel.GetTracerProvider.
	Provider trace.TracerProvider

	// IncludeValues records cell values as span attributes.
	// Values may contain sensitive information - disabled by default.
	IncludeValues bool

	tracer trace.Tracer
}

// TracingOption configures the OpenTelemetry engine hooks.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(provider trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = provider
	}
}

// WithIncludeValues enables recording cell values on spans.
func WithIncludeValues(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeValues = include
	}
}

// Tracing records derivation recomputes, watcher runs and scheduler
// flushes as OpenTelemetry spans. It implements reactive.Hooks.
//
// The engine is synchronous and has no context, so spans are recorded
// after the fact with explicit start and end timestamps and are roots of
// their own traces.
//
// Configure the global tracer provider before installing the hooks:
//
//	otel.SetTracerProvider(tp)
//	restore := reactive.SetHooks(instrument.NewTracing())
//	defer restore()
type Tracing struct {
	reactive.NopHooks
	config TracingConfig
}

var _ reactive.Hooks = (*Tracing)(nil)

// NewTracing creates tracing hooks.
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider != nil {
		config.tracer = config.Provider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}
	return &Tracing{config: config}
}

func (t *Tracing) record(name string, start time.Time, d time.Duration, err error, attrs ...attribute.KeyValue) {
	_, span := t.config.tracer.Start(
		context.Background(),
		name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(start),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(start.Add(d)))
}

func cellAttributes(cell reactive.Observable) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("eventreduce.cell", cell.Label()),
		attribute.Int64("eventreduce.cell_id", int64(cell.ID())),
		attribute.String("eventreduce.kind", cell.Kind().String()),
	}
}

// Recomputed implements reactive.Hooks.
func (t *Tracing) Recomputed(cell reactive.Observable, start time.Time, d time.Duration, err error) {
	attrs := cellAttributes(cell)
	if s, ok := cell.(interface{ Sources() []reactive.Observable }); ok && err == nil {
		attrs = append(attrs, attribute.Int("eventreduce.sources", len(s.Sources())))
	}
	if t.config.IncludeValues && err == nil {
		attrs = append(attrs, attribute.String("eventreduce.value", formatValue(cell.Snapshot())))
	}
	t.record("eventreduce.recompute", start, d, err, attrs...)
}

// WatcherRun implements reactive.Hooks.
func (t *Tracing) WatcherRun(w *reactive.Watcher, sources int, start time.Time, d time.Duration) {
	t.record("eventreduce.watch", start, d, nil,
		attribute.String("eventreduce.watcher", w.Label()),
		attribute.Int("eventreduce.sources", sources),
		attribute.Int("eventreduce.runs", w.Runs()),
	)
}

// ReactionsFlushed implements reactive.Hooks.
func (t *Tracing) ReactionsFlushed(n int, start time.Time, d time.Duration) {
	t.record("eventreduce.flush", start, d, nil,
		attribute.Int("eventreduce.reactions", n),
	)
}
