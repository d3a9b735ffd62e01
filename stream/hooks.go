package stream

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/observability"
)

// Hook observes node executions. Before may return a derived context that
// the node callback and After receive.
type Hook interface {
	Before(ctx context.Context, node string) context.Context
	After(ctx context.Context, node string, d time.Duration, err error)
}

// TracingHook opens one span per node execution named "{prefix}.{node}".
type TracingHook struct {
	Prefix string
}

func (h TracingHook) Before(ctx context.Context, node string) context.Context {
	prefix := h.Prefix
	if prefix == "" {
		prefix = observability.SpanNode
	}
	ctx, _ = observability.StartSpan(ctx, prefix+"."+node)
	observability.SetSpanAttribute(ctx, observability.AttrNode, node)
	return ctx
}

func (h TracingHook) After(ctx context.Context, _ string, _ time.Duration, err error) {
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	trace.SpanFromContext(ctx).End()
}

// MetricsHook records node duration and errors.
type MetricsHook struct {
	Metrics *observability.Metrics
}

func (h MetricsHook) Before(ctx context.Context, _ string) context.Context { return ctx }

func (h MetricsHook) After(ctx context.Context, node string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	h.Metrics.RecordNode(ctx, node, status, d)
}

// LoggingHook logs failures at error level and completions at debug level.
type LoggingHook struct {
	Log *logger.Logger
}

func (h LoggingHook) Before(ctx context.Context, _ string) context.Context { return ctx }

func (h LoggingHook) After(ctx context.Context, node string, d time.Duration, err error) {
	fields := logger.NodeFields(node, d)
	if err != nil {
		h.Log.WithContext(ctx).Error("stream node failed", logger.MergeWithError(fields, err))
		return
	}
	h.Log.WithContext(ctx).Debug("stream node completed", fields)
}
