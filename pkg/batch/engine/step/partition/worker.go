// Package partition runs the partitions of one table transfer: a Worker per partition and a
// SagaCoordinator that reruns failed partitions.
package partition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	"github.com/tigerroll/tablesync/pkg/batch/adapter/database/query"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/retry"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const moduleName = "partition"

// DefaultBatchSize is the number of rows fetched and committed per batch.
const DefaultBatchSize = 5000

// Runner executes one work unit and reports whether it completed.
type Runner interface {
	Run(ctx context.Context, unit model.WorkUnit) bool
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, unit model.WorkUnit) bool

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, unit model.WorkUnit) bool {
	return f(ctx, unit)
}

// Worker copies one partition from the source to the target database.
// Each attempt opens its own source and target connections; the source is read inside a
// repeatable-read transaction and every batch is committed on the target separately.
type Worker struct {
	provider  database.ConnectionProvider
	source    string
	target    string
	batchSize int64
	policy    retry.RetryPolicy
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// NewWorker creates a Worker. A non-positive batchSize uses DefaultBatchSize.
func NewWorker(
	provider database.ConnectionProvider,
	source, target string,
	batchSize int,
	policy retry.RetryPolicy,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Worker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Worker{
		provider:  provider,
		source:    source,
		target:    target,
		batchSize: int64(batchSize),
		policy:    policy,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// Run implements Runner. Errors are logged and retried according to the worker's policy;
// only the outcome is returned. A unit already marked complete returns true at once.
func (w *Worker) Run(ctx context.Context, unit model.WorkUnit) bool {
	if unit.Completion == nil {
		unit.Completion = model.NewCompletionState()
	}
	log := logger.WithFields(logger.Fields{"table": unit.Table, "worker": unit.Name(), "mode": unit.Mode.String()})

	if unit.Completion.IsComplete(unit.WorkerID) {
		log.Infof("Range %s was already processed.", unit.Range)
		return true
	}

	ctx, end := w.tracer.StartPartitionSpan(ctx, unit)
	defer end()

	applier, err := ApplierFor(unit.Mode)
	if err != nil {
		log.Errorf("Cannot start: %v", err)
		w.tracer.RecordError(ctx, moduleName, err)
		return false
	}

	log.Infof("Starting processing range %s (filter: %s).", unit.Range, unit.Filter)
	err = retry.Do(ctx, w.policy, func(attempt int) error {
		return w.process(ctx, unit, applier, log)
	}, func(err error, wait time.Duration) {
		log.Warnf("Error during processing, retrying in %s: %v", wait, err)
		w.recorder.RecordWorkerRetry(ctx, unit.Table, retryReason(err))
	})
	if err != nil {
		log.Errorf("Giving up on range %s: %v", unit.Range, err)
		w.tracer.RecordError(ctx, moduleName, err)
		return false
	}

	unit.Completion.MarkComplete(unit.WorkerID)
	log.Infof("Finished range %s.", unit.Range)
	return true
}

// process runs one attempt, resuming after the rows already committed for the unit.
func (w *Worker) process(ctx context.Context, unit model.WorkUnit, applier BatchApplier, log *logrus.Entry) (err error) {
	source, err := w.provider.Connect(ctx, w.source, sql.LevelRepeatableRead)
	if err != nil {
		return err
	}
	target, err := w.provider.Connect(ctx, w.target, sql.LevelDefault)
	if err != nil {
		_ = source.Close()
		return err
	}
	defer func() {
		if cerr := closeAll(source, target); cerr != nil {
			log.Warnf("Closing connections: %v", cerr)
		}
	}()

	desc, err := database.Describe(ctx, source, unit.Table, unit.PrimaryKey)
	if err != nil {
		return err
	}

	snapshot, err := source.Begin(ctx)
	if err != nil {
		return err
	}
	defer snapshot.Rollback()

	total := unit.Range.Len()
	for done := unit.Completion.Committed(unit.WorkerID); done < total; {
		if err := ctx.Err(); err != nil {
			return err
		}
		limit := w.batchSize
		if rest := total - done; rest < limit {
			limit = rest
		}
		page, err := query.NewPage(desc, unit.Filter, unit.Range.Start+done, limit)
		if err != nil {
			return err
		}
		rows, err := snapshot.FetchPage(ctx, page)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			log.Warnf("Source returned no rows at offset %d; %d of %d rows processed.", page.Offset, done, total)
			return exception.NewQueryError(moduleName, "source range shrank during transfer",
				fmt.Errorf("no rows at offset %d of %s, %d of %d processed", page.Offset, unit.Table, done, total))
		}

		if err := w.commitBatch(ctx, target, applier, desc, rows); err != nil {
			return err
		}
		done += int64(len(rows))
		unit.Completion.RecordCommit(unit.WorkerID, done)
		w.recorder.RecordBatchCommit(ctx, unit.Table, unit.Mode, len(rows))
		w.tracer.RecordEvent(ctx, "batch committed", map[string]interface{}{"rows": len(rows), "done": done})
		log.Infof("Processed %d/%d rows.", done, total)
	}
	return nil
}

func (w *Worker) commitBatch(ctx context.Context, target database.DBConnection, applier BatchApplier, desc model.TableDescriptor, rows []model.Row) error {
	tx, err := target.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := applier.Apply(ctx, tx, desc, rows); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func closeAll(conns ...database.DBConnection) error {
	var result *multierror.Error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", c.Name(), err))
		}
	}
	return result.ErrorOrNil()
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, exception.ErrConnection):
		return "connection"
	case errors.Is(err, exception.ErrQuery):
		return "query"
	default:
		return "other"
	}
}
