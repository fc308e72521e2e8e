package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
)

// OpenTelemetryRecorder is a metrics.MetricRecorder backed by an OpenTelemetry Meter.
type OpenTelemetryRecorder struct {
	tableTransfers   otelmetric.Int64Counter
	tableDuration    otelmetric.Float64Histogram
	rowsCommitted    otelmetric.Int64Counter
	batchesCommitted otelmetric.Int64Counter
	workerRetries    otelmetric.Int64Counter
	sagaRounds       otelmetric.Int64Counter
	failedPartitions otelmetric.Int64Counter
	validations      otelmetric.Int64Counter
	operationTime    otelmetric.Float64Histogram
}

// NewOpenTelemetryRecorder creates the instruments on a meter from mp.
func NewOpenTelemetryRecorder(mp otelmetric.MeterProvider) (*OpenTelemetryRecorder, error) {
	meter := mp.Meter(instrumentationName)
	r := &OpenTelemetryRecorder{}
	var err error

	if r.tableTransfers, err = meter.Int64Counter("tablesync.table.transfers",
		otelmetric.WithDescription("Table transfers by status.")); err != nil {
		return nil, err
	}
	if r.tableDuration, err = meter.Float64Histogram("tablesync.table.duration",
		otelmetric.WithDescription("Duration of table transfers, including validation."),
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.rowsCommitted, err = meter.Int64Counter("tablesync.rows.committed",
		otelmetric.WithDescription("Rows committed to the target.")); err != nil {
		return nil, err
	}
	if r.batchesCommitted, err = meter.Int64Counter("tablesync.batches.committed",
		otelmetric.WithDescription("Batches committed to the target.")); err != nil {
		return nil, err
	}
	if r.workerRetries, err = meter.Int64Counter("tablesync.worker.retries",
		otelmetric.WithDescription("Worker attempts retried, by failure class.")); err != nil {
		return nil, err
	}
	if r.sagaRounds, err = meter.Int64Counter("tablesync.saga.rounds",
		otelmetric.WithDescription("Saga rounds executed.")); err != nil {
		return nil, err
	}
	if r.failedPartitions, err = meter.Int64Counter("tablesync.saga.failed_partitions",
		otelmetric.WithDescription("Partitions that failed a saga round.")); err != nil {
		return nil, err
	}
	if r.validations, err = meter.Int64Counter("tablesync.validations",
		otelmetric.WithDescription("Reconciliations by result.")); err != nil {
		return nil, err
	}
	if r.operationTime, err = meter.Float64Histogram("tablesync.operation.duration",
		otelmetric.WithDescription("Duration of named operations."),
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OpenTelemetryRecorder) RecordTableStart(ctx context.Context, table string, mode model.Mode) {
	r.tableTransfers.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("table", table),
		attribute.String("mode", mode.String()),
		attribute.String("status", model.TransferStatusStarted.String()),
	))
}

func (r *OpenTelemetryRecorder) RecordTableEnd(ctx context.Context, table string, mode model.Mode, status model.TransferStatus, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("table", table),
		attribute.String("mode", mode.String()),
		attribute.String("status", status.String()),
	)
	r.tableTransfers.Add(ctx, 1, attrs)
	r.tableDuration.Record(ctx, duration.Seconds(), attrs)
}

func (r *OpenTelemetryRecorder) RecordBatchCommit(ctx context.Context, table string, mode model.Mode, rows int) {
	attrs := otelmetric.WithAttributes(attribute.String("table", table), attribute.String("mode", mode.String()))
	r.batchesCommitted.Add(ctx, 1, attrs)
	r.rowsCommitted.Add(ctx, int64(rows), attrs)
}

func (r *OpenTelemetryRecorder) RecordWorkerRetry(ctx context.Context, table string, reason string) {
	r.workerRetries.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("table", table), attribute.String("reason", reason)))
}

func (r *OpenTelemetryRecorder) RecordSagaRound(ctx context.Context, table string, round int, failed int) {
	attrs := otelmetric.WithAttributes(attribute.String("table", table))
	r.sagaRounds.Add(ctx, 1, attrs)
	r.failedPartitions.Add(ctx, int64(failed), attrs)
}

func (r *OpenTelemetryRecorder) RecordValidation(ctx context.Context, result model.ValidationResult) {
	r.validations.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("table", result.Table),
		attribute.String("result", validationOutcome(result)),
	))
}

func (r *OpenTelemetryRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operationTime.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
