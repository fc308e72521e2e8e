package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

// MetricRecorder records transfer metrics. Implementations must be safe for concurrent
// use because workers of one saga round report in parallel.
type MetricRecorder interface {
	// RecordTableStart records the start of one table transfer in the given mode.
	RecordTableStart(ctx context.Context, table string, mode model.Mode)

	// RecordTableEnd records the end of one table transfer and its final status.
	RecordTableEnd(ctx context.Context, table string, mode model.Mode, status model.TransferStatus, duration time.Duration)

	// RecordBatchCommit records a committed batch of rows.
	RecordBatchCommit(ctx context.Context, table string, mode model.Mode, rows int)

	// RecordWorkerRetry records a worker attempt that failed and will be retried.
	// reason is a short classification such as "connection" or "query".
	RecordWorkerRetry(ctx context.Context, table string, reason string)

	// RecordSagaRound records one saga round and the number of partitions that failed in it.
	RecordSagaRound(ctx context.Context, table string, round int, failed int)

	// RecordValidation records a reconciliation outcome.
	RecordValidation(ctx context.Context, result model.ValidationResult)

	// RecordDuration records the execution time of a named operation.
	//   tags example: `{"table": "users", "phase": "insert"}`
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
