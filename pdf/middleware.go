package pdf

import (
	"context"
	"time"

	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/observability"
)

// Middleware wraps a Transformer with cross-cutting behavior.
type Middleware func(Transformer) Transformer

// Chain composes middlewares; the first is outermost.
//
// Chain(a, b, c)(t) is equivalent to a(b(c(t))).
func Chain(middlewares ...Middleware) Middleware {
	return func(inner Transformer) Transformer {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}

// WithLogging logs each Transform call with its kind and duration.
func WithLogging(log *logger.Logger) Middleware {
	return func(inner Transformer) Transformer {
		return &loggingTransformer{inner: inner, log: log}
	}
}

type loggingTransformer struct {
	inner Transformer
	log   *logger.Logger
}

func (l *loggingTransformer) Name() string                         { return l.inner.Name() }
func (l *loggingTransformer) IsAvailable(ctx context.Context) bool { return l.inner.IsAvailable(ctx) }

func (l *loggingTransformer) Transform(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := l.inner.Transform(ctx, req)
	fields := logger.Fields(
		"transformer", l.inner.Name(),
		"kind", string(req.Kind),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if err != nil {
		l.log.WithContext(ctx).Error("pdf transform failed", logger.MergeWithError(fields, err))
	} else {
		l.log.WithContext(ctx).Debug("pdf transform ok", fields)
	}
	return res, err
}

// WithTracing opens a span named "{serviceName}.{transformer}.{kind}" per
// call.
func WithTracing(serviceName string) Middleware {
	return func(inner Transformer) Transformer {
		return &tracingTransformer{inner: inner, serviceName: serviceName}
	}
}

type tracingTransformer struct {
	inner       Transformer
	serviceName string
}

func (t *tracingTransformer) Name() string                         { return t.inner.Name() }
func (t *tracingTransformer) IsAvailable(ctx context.Context) bool { return t.inner.IsAvailable(ctx) }

func (t *tracingTransformer) Transform(ctx context.Context, req Request) (Result, error) {
	ctx, span := observability.StartSpan(ctx, t.serviceName+"."+t.inner.Name()+"."+string(req.Kind))
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrServiceName, t.serviceName)
	observability.SetSpanAttribute(ctx, observability.AttrOperationName, observability.SpanTransform)

	res, err := t.inner.Transform(ctx, req)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return res, err
}

// WithMetrics records operation counts, durations and errors.
func WithMetrics(metrics *observability.Metrics) Middleware {
	return func(inner Transformer) Transformer {
		return &metricsTransformer{inner: inner, metrics: metrics}
	}
}

type metricsTransformer struct {
	inner   Transformer
	metrics *observability.Metrics
}

func (m *metricsTransformer) Name() string                         { return m.inner.Name() }
func (m *metricsTransformer) IsAvailable(ctx context.Context) bool { return m.inner.IsAvailable(ctx) }

func (m *metricsTransformer) Transform(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := m.inner.Transform(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
		m.metrics.RecordError(ctx, "transform", m.inner.Name())
	}
	m.metrics.RecordOperation(ctx, m.inner.Name(), string(req.Kind), status, time.Since(start))
	return res, err
}
