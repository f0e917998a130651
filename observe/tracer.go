package observe

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Meta describes an instrumented operation.
type Meta struct {
	Component string            // catalog|offline|kv|proxy
	Operation string            // load|install|activate|fetch|...
	Version   string            // cache version for offline operations (optional)
	Attrs     map[string]string // extra low-cardinality attributes (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: toolshelf.<component>.<operation> or toolshelf.<operation>
func (m Meta) SpanName() string {
	if m.Component != "" {
		return "toolshelf." + m.Component + "." + m.Operation
	}
	return "toolshelf." + m.Operation
}

// Validate reports whether the metadata names an operation.
func (m Meta) Validate() error {
	if m.Operation == "" {
		return ErrMissingOperation
	}
	return nil
}

func (m Meta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("toolshelf.component", m.Component),
		attribute.String("toolshelf.operation", m.Operation),
	}
	if m.Version != "" {
		attrs = append(attrs, attribute.String("toolshelf.version", m.Version))
	}
	keys := make([]string, 0, len(m.Attrs))
	for k := range m.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, m.Attrs[k]))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with operation-scoped spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
