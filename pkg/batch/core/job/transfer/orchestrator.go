// Package transfer drives whole-table transfers: clear, partition, saga execution and
// reconciliation, composed into full copies and watermark-based incremental syncs.
package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	"github.com/tigerroll/tablesync/pkg/batch/adapter/database/query"
	"github.com/tigerroll/tablesync/pkg/batch/component/partitioner"
	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
	"github.com/tigerroll/tablesync/pkg/batch/core/watermark"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/partition"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/retry"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/validation"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const moduleName = "transfer"

// Request names the databases of a run and how many workers each table gets.
type Request struct {
	Source      string
	Target      string
	WorkerCount int
}

// Params holds the dependencies of an Orchestrator.
type Params struct {
	fx.In

	Provider    database.ConnectionProvider
	Config      *config.Config
	Store       watermark.Store
	Decider     partition.RetryDecider
	Partitioner partitioner.Partitioner `optional:"true"`
	Recorder    metrics.MetricRecorder  `optional:"true"`
	Tracer      metrics.Tracer          `optional:"true"`
}

// Orchestrator transfers the configured tables from a source to a target database.
type Orchestrator struct {
	provider    database.ConnectionProvider
	tables      []config.TableConfig
	batch       config.BatchConfig
	store       watermark.Store
	decider     partition.RetryDecider
	partitioner partitioner.Partitioner
	recorder    metrics.MetricRecorder
	tracer      metrics.Tracer
	loc         *time.Location
	now         func() time.Time
}

// NewOrchestrator creates an Orchestrator for the tables of p.Config, in configured order.
func NewOrchestrator(p Params) *Orchestrator {
	o := &Orchestrator{
		provider:    p.Provider,
		tables:      p.Config.Tablesync.TableConfigs(),
		batch:       p.Config.Tablesync.Batch,
		store:       p.Store,
		decider:     p.Decider,
		partitioner: p.Partitioner,
		recorder:    p.Recorder,
		tracer:      p.Tracer,
		loc:         time.UTC,
		now:         time.Now,
	}
	if loc, err := time.LoadLocation(p.Config.Tablesync.System.Timezone); err == nil {
		o.loc = loc
	} else {
		logger.Warnf("Unknown timezone %q, comparing timestamps in UTC.", p.Config.Tablesync.System.Timezone)
	}
	if o.partitioner == nil {
		o.partitioner = partitioner.NewRangePartitioner()
	}
	if o.recorder == nil {
		o.recorder = metrics.NewNoOpMetricRecorder()
	}
	if o.tracer == nil {
		o.tracer = metrics.NewNoOpTracer()
	}
	return o
}

// Tables returns the tables transferred by TransferAll and TransferUpdates.
func (o *Orchestrator) Tables() []config.TableConfig {
	return o.tables
}

// TransferAll copies every table in order, clearing each target table first. It stops at
// the first table that fails; tables already copied stay copied. On success the watermark
// is set to the time the run started.
func (o *Orchestrator) TransferAll(ctx context.Context, req Request) error {
	r, err := o.newRun(req)
	if err != nil {
		return err
	}
	ctx, end := o.tracer.StartRunSpan(ctx, "transfer_all", r.id)
	defer end()

	begun := time.Now()
	started := o.now().UTC()
	r.log.Infof("Starting full copy of %d tables from %s to %s with %d workers.", len(o.tables), req.Source, req.Target, r.workers)

	failed := func(err error) error {
		o.recorder.RecordDuration(ctx, "transfer_all", time.Since(begun), map[string]string{"status": model.TransferStatusFailed.String()})
		return err
	}
	for _, table := range o.tables {
		if err := r.transferTable(ctx, table, model.ModeCopy, model.Filter{}); err != nil {
			r.log.Errorf("Full copy aborted at table %s: %v", table.Name, err)
			return failed(err)
		}
	}

	if err := o.store.Set(ctx, started); err != nil {
		return failed(err)
	}
	o.recorder.RecordDuration(ctx, "transfer_all", time.Since(begun), map[string]string{"status": model.TransferStatusCompleted.String()})
	r.log.Infof("Full copy completed. Watermark set to %s.", started.Format(time.RFC3339Nano))
	return nil
}

// TransferUpdates syncs rows created or modified since the stored watermark. Each table
// runs an insert phase and then an update phase, both validated. The watermark captured
// before the first table is stored only when every phase of every table succeeded.
// Timestamp columns are compared against the watermark in system.timezone.
func (o *Orchestrator) TransferUpdates(ctx context.Context, req Request) error {
	r, err := o.newRun(req)
	if err != nil {
		return err
	}
	ctx, end := o.tracer.StartRunSpan(ctx, "transfer_updates", r.id)
	defer end()

	last, err := o.store.Get(ctx)
	if err != nil {
		return err
	}
	since := last.In(o.loc)
	begun := time.Now()
	next := o.now().UTC()
	r.log.Infof("Syncing changes since %s from %s to %s.", since.Format(time.RFC3339Nano), req.Source, req.Target)

	failed := func(err error) error {
		o.recorder.RecordDuration(ctx, "transfer_updates", time.Since(begun), map[string]string{"status": model.TransferStatusFailed.String()})
		return err
	}
	for _, table := range o.tables {
		if err := r.transferTable(ctx, table, model.ModeInsert, InsertWindow(table, since)); err != nil {
			r.log.Errorf("Sync aborted at table %s (insert phase): %v", table.Name, err)
			return failed(err)
		}
		if err := r.transferTable(ctx, table, model.ModeUpdate, UpdateWindow(table, since)); err != nil {
			r.log.Errorf("Sync aborted at table %s (update phase): %v", table.Name, err)
			return failed(err)
		}
	}

	if err := o.store.Set(ctx, next); err != nil {
		return failed(err)
	}
	o.recorder.RecordDuration(ctx, "transfer_updates", time.Since(begun), map[string]string{"status": model.TransferStatusCompleted.String()})
	r.log.Infof("Sync completed. Watermark advanced to %s.", next.Format(time.RFC3339Nano))
	return nil
}

// TransferTable runs one table through clear (copy mode only), count, partition, saga
// and validation. A validation mismatch is returned as exception.ErrValidationMismatch.
func (o *Orchestrator) TransferTable(ctx context.Context, req Request, table config.TableConfig, mode model.Mode, filter model.Filter) error {
	r, err := o.newRun(req)
	if err != nil {
		return err
	}
	return r.transferTable(ctx, table, mode, filter)
}

// run holds the per-request collaborators of one TransferAll, TransferUpdates or
// TransferTable call.
type run struct {
	*Orchestrator
	id        string
	req       Request
	workers   int
	saga      *partition.SagaCoordinator
	validator *validation.Validator
	log       *logrus.Entry
}

func (o *Orchestrator) newRun(req Request) (*run, error) {
	if req.Source == "" || req.Target == "" {
		return nil, exception.NewInvalidConfiguration(moduleName, "source and target databases are required")
	}
	if req.Source == req.Target {
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("source and target are the same database: %s", req.Source))
	}
	workers := req.WorkerCount
	if workers == 0 {
		workers = o.batch.WorkerCount
	}
	if workers <= 0 {
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("worker count must be positive, got %d", workers))
	}

	worker := partition.NewWorker(o.provider, req.Source, req.Target, o.batch.BatchSize,
		retry.NewRetryPolicy(o.batch.Retry), o.recorder, o.tracer)
	id := model.NewID()
	return &run{
		Orchestrator: o,
		id:           id,
		req:          req,
		workers:      workers,
		saga:         partition.NewSagaCoordinator(worker, o.decider, o.batch.Saga.MaxAttempts, o.recorder),
		validator:    validation.NewValidator(o.provider, req.Source, req.Target, o.recorder),
		log:          logger.WithFields(logger.Fields{"run": id}),
	}, nil
}

func (r *run) transferTable(ctx context.Context, table config.TableConfig, mode model.Mode, filter model.Filter) (err error) {
	ctx, end := r.tracer.StartTableSpan(ctx, table.Name, mode)
	defer end()
	log := r.log.WithFields(logrus.Fields{"table": table.Name, "mode": mode.String()})

	started := time.Now()
	status := model.TransferStatusFailed
	r.recorder.RecordTableStart(ctx, table.Name, mode)
	defer func() {
		r.recorder.RecordTableEnd(ctx, table.Name, mode, status, time.Since(started))
		if err != nil {
			r.tracer.RecordError(ctx, moduleName, err)
		}
	}()

	if mode.ClearsTarget() {
		cleared, err := r.clearTarget(ctx, table)
		if err != nil {
			return err
		}
		log.Infof("Cleared %d rows from target table.", cleared)
	}

	total, err := r.countSource(ctx, table, filter)
	if err != nil {
		return err
	}
	log.Infof("%d source rows match %s.", total, filter)

	ranges, err := r.partitioner.Partition(total, r.workers)
	if err != nil {
		return err
	}
	if len(ranges) > 0 {
		units := partitioner.WorkUnits(table.Name, table.PrimaryKey, ranges, mode, filter, model.NewCompletionState())
		if err := r.saga.Run(ctx, units); err != nil {
			return err
		}
	}

	result, err := r.validator.Validate(ctx, table.Name, table.PrimaryKey, filter)
	if err != nil {
		return err
	}
	if !result.OK() {
		return exception.NewValidationMismatch(moduleName, fmt.Sprintf(
			"table %s (%s): source=%d rows, target=%d rows, hash match=%t",
			table.Name, filter, result.SourceCount, result.TargetCount, result.ContentHashMatch))
	}

	status = model.TransferStatusCompleted
	log.Infof("Table transferred and validated (%d rows).", result.SourceCount)
	return nil
}

func (r *run) clearTarget(ctx context.Context, table config.TableConfig) (int64, error) {
	target, err := r.provider.Connect(ctx, r.req.Target, sql.LevelDefault)
	if err != nil {
		return 0, err
	}
	defer closeQuietly(target)

	desc, err := database.Describe(ctx, target, table.Name, table.PrimaryKey)
	if err != nil {
		return 0, err
	}
	del, err := query.NewDelete(desc)
	if err != nil {
		return 0, err
	}
	tx, err := target.Begin(ctx)
	if err != nil {
		return 0, err
	}
	n, err := tx.DeleteAll(ctx, del)
	if err != nil {
		return 0, multierror.Append(err, tx.Rollback()).ErrorOrNil()
	}
	return n, tx.Commit()
}

func (r *run) countSource(ctx context.Context, table config.TableConfig, filter model.Filter) (int64, error) {
	source, err := r.provider.Connect(ctx, r.req.Source, sql.LevelRepeatableRead)
	if err != nil {
		return 0, err
	}
	defer closeQuietly(source)

	desc, err := database.Describe(ctx, source, table.Name, table.PrimaryKey)
	if err != nil {
		return 0, err
	}
	count, err := query.NewCount(desc, filter)
	if err != nil {
		return 0, err
	}
	tx, err := source.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	return tx.Count(ctx, count)
}

func closeQuietly(conn database.DBConnection) {
	if err := conn.Close(); err != nil {
		logger.Warnf("Closing connection %s: %v", conn.Name(), err)
	}
}
