package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/tablesync"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from the given provider.
func NewOpenTelemetryTracer(tp trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(instrumentationName)}
}

// StartRunSpan starts the root span of a run.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, operation string, runID string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("tablesync.run_id", runID)),
	)
	return ctx, func() { span.End() }
}

// StartTableSpan starts a new span for a table transfer.
func (t *OpenTelemetryTracer) StartTableSpan(ctx context.Context, table string, mode model.Mode) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("transfer %s", table),
		trace.WithAttributes(
			attribute.String("tablesync.table", table),
			attribute.String("tablesync.mode", mode.String()),
		),
	)
	return ctx, func() { span.End() }
}

// StartPartitionSpan starts a new span for one worker run.
func (t *OpenTelemetryTracer) StartPartitionSpan(ctx context.Context, unit model.WorkUnit) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("%s %s", unit.Table, unit.Name()),
		trace.WithAttributes(
			attribute.String("tablesync.table", unit.Table),
			attribute.Int("tablesync.worker_id", unit.WorkerID),
			attribute.Int64("tablesync.range.start", unit.Range.Start),
			attribute.Int64("tablesync.range.end", unit.Range.End),
			attribute.String("tablesync.mode", unit.Mode.String()),
		),
	)
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span and marks it failed.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("tablesync.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func toAttribute(key string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case bool:
		return attribute.Bool(key, val)
	case float64:
		return attribute.Float64(key, val)
	case []int:
		return attribute.IntSlice(key, val)
	case []string:
		return attribute.StringSlice(key, val)
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
