package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Table Metrics
	tableDurationSeconds *prometheus.HistogramVec
	tableStatusCounter   *prometheus.CounterVec

	// Batch Metrics
	rowsCommitted    *prometheus.CounterVec
	batchesCommitted *prometheus.CounterVec

	// Failure handling
	workerRetryCounter     *prometheus.CounterVec
	sagaRoundCounter       *prometheus.CounterVec
	sagaFailedPartitions   *prometheus.CounterVec
	validationCounter      *prometheus.CounterVec
	operationDurationHisto *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		tableDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tablesync_table_duration_seconds",
			Help:    "Duration of table transfers, including validation.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"table", "mode", "status"}),
		tableStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesync_table_transfers_total",
			Help: "Total number of table transfers by status.",
		}, []string{"table", "mode", "status"}),
		rowsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesync_rows_committed_total",
			Help: "Total rows committed to the target.",
		}, []string{"table", "mode"}),
		batchesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesync_batches_committed_total",
			Help: "Total batches committed to the target.",
		}, []string{"table", "mode"}),
		workerRetryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesync_worker_retries_total",
			Help: "Total worker attempts retried, by failure class.",
		}, []string{"table", "reason"}),
		sagaRoundCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesync_saga_rounds_total",
			Help: "Total saga rounds executed.",
		}, []string{"table"}),
		sagaFailedPartitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesync_saga_failed_partitions_total",
			Help: "Total partitions that failed a saga round.",
		}, []string{"table"}),
		validationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesync_validations_total",
			Help: "Total reconciliations by result.",
		}, []string{"table", "result"}), // result: match, count_mismatch, hash_mismatch
		operationDurationHisto: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tablesync_operation_duration_seconds",
			Help:    "Duration of named operations such as validation and phases.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "table"}),
	}

	registry.MustRegister(
		r.tableDurationSeconds,
		r.tableStatusCounter,
		r.rowsCommitted,
		r.batchesCommitted,
		r.workerRetryCounter,
		r.sagaRoundCounter,
		r.sagaFailedPartitions,
		r.validationCounter,
		r.operationDurationHisto,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps the registry in the text exposition format, for node_exporter's
// textfile collector.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// RecordTableStart records the start of a table transfer.
func (r *PrometheusRecorder) RecordTableStart(ctx context.Context, table string, mode model.Mode) {
	r.tableStatusCounter.WithLabelValues(table, mode.String(), model.TransferStatusStarted.String()).Inc()
	logger.Debugf("Metrics: table '%s' (%s) started.", table, mode)
}

// RecordTableEnd records the end of a table transfer.
func (r *PrometheusRecorder) RecordTableEnd(ctx context.Context, table string, mode model.Mode, status model.TransferStatus, duration time.Duration) {
	r.tableStatusCounter.WithLabelValues(table, mode.String(), status.String()).Inc()
	r.tableDurationSeconds.WithLabelValues(table, mode.String(), status.String()).Observe(duration.Seconds())
	logger.Debugf("Metrics: table '%s' (%s) ended with %s. Duration: %.3fs", table, mode, status, duration.Seconds())
}

// RecordBatchCommit records a committed batch.
func (r *PrometheusRecorder) RecordBatchCommit(ctx context.Context, table string, mode model.Mode, rows int) {
	r.batchesCommitted.WithLabelValues(table, mode.String()).Inc()
	r.rowsCommitted.WithLabelValues(table, mode.String()).Add(float64(rows))
}

// RecordWorkerRetry records a retried worker attempt.
func (r *PrometheusRecorder) RecordWorkerRetry(ctx context.Context, table string, reason string) {
	r.workerRetryCounter.WithLabelValues(table, reason).Inc()
}

// RecordSagaRound records one saga round.
func (r *PrometheusRecorder) RecordSagaRound(ctx context.Context, table string, round int, failed int) {
	r.sagaRoundCounter.WithLabelValues(table).Inc()
	r.sagaFailedPartitions.WithLabelValues(table).Add(float64(failed))
}

// RecordValidation records a reconciliation outcome.
func (r *PrometheusRecorder) RecordValidation(ctx context.Context, result model.ValidationResult) {
	r.validationCounter.WithLabelValues(result.Table, validationOutcome(result)).Inc()
}

// RecordDuration records the execution time of a named operation. Only the "table" tag is kept
// as a label; other tags would make the label set unbounded.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationHisto.WithLabelValues(name, tags["table"]).Observe(duration.Seconds())
}

func validationOutcome(result model.ValidationResult) string {
	switch {
	case !result.RowCountMatch:
		return "count_mismatch"
	case !result.ContentHashMatch:
		return "hash_mismatch"
	default:
		return "match"
	}
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
