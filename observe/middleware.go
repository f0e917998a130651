package observe

import (
	"context"
	"time"
)

// Middleware wraps operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Run is safe for concurrent use.
//   - Context: the span context is propagated to op.
//   - Errors: errors from op are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Nop returns a Middleware that records nothing.
func Nop() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the underlying logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Metrics returns the underlying metrics recorder.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Run executes op inside a span, records its duration and outcome, and logs
// one line when it finishes.
func (m *Middleware) Run(ctx context.Context, meta Meta, op func(ctx context.Context) error) error {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := op(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, meta, duration, err)

	logger := m.logger.With(meta)
	fields := []Field{F("duration_ms", float64(duration.Microseconds())/1000)}
	if err != nil {
		fields = append(fields, F("error", err))
		logger.Error(ctx, meta.SpanName()+" failed", fields...)
	} else {
		logger.Debug(ctx, meta.SpanName()+" completed", fields...)
	}

	return err
}
