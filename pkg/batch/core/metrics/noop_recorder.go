package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordTableStart(ctx context.Context, table string, mode model.Mode) {}
func (r *NoOpMetricRecorder) RecordTableEnd(ctx context.Context, table string, mode model.Mode, status model.TransferStatus, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordBatchCommit(ctx context.Context, table string, mode model.Mode, rows int) {
}
func (r *NoOpMetricRecorder) RecordWorkerRetry(ctx context.Context, table string, reason string)   {}
func (r *NoOpMetricRecorder) RecordSagaRound(ctx context.Context, table string, round int, failed int) {}
func (r *NoOpMetricRecorder) RecordValidation(ctx context.Context, result model.ValidationResult) {}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, operation string, runID string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartTableSpan(ctx context.Context, table string, mode model.Mode) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartPartitionSpan(ctx context.Context, unit model.WorkUnit) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
