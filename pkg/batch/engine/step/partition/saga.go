package partition

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

// DefaultSagaAttempts is the number of rounds a saga runs before giving up.
const DefaultSagaAttempts = 3

// SagaCoordinator runs every work unit of a table concurrently and reruns only the
// failed ones, up to maxAttempts rounds.
type SagaCoordinator struct {
	runner      Runner
	decider     RetryDecider
	maxAttempts int
	recorder    metrics.MetricRecorder
}

// NewSagaCoordinator creates a SagaCoordinator. A nil decider retries always; a
// non-positive maxAttempts uses DefaultSagaAttempts.
func NewSagaCoordinator(runner Runner, decider RetryDecider, maxAttempts int, recorder metrics.MetricRecorder) *SagaCoordinator {
	if decider == nil {
		decider = AlwaysRetry
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultSagaAttempts
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &SagaCoordinator{runner: runner, decider: decider, maxAttempts: maxAttempts, recorder: recorder}
}

// Execute runs the saga and reports whether every unit completed.
func (s *SagaCoordinator) Execute(ctx context.Context, units []model.WorkUnit) bool {
	return s.Run(ctx, units) == nil
}

// Run runs the saga. Units without a completion state share one created for this run.
// The returned error wraps exception.ErrSagaExhausted when partitions still fail after the
// last round or the decider declines another round.
func (s *SagaCoordinator) Run(ctx context.Context, units []model.WorkUnit) error {
	if len(units) == 0 {
		return nil
	}
	table := units[0].Table
	completion := model.NewCompletionState()
	pending := lo.Map(units, func(u model.WorkUnit, _ int) model.WorkUnit {
		if u.Completion == nil {
			u.Completion = completion
		}
		return u
	})

	for attempt := 1; ; attempt++ {
		logger.Infof("Saga attempt %d/%d for table %s (%d workers).", attempt, s.maxAttempts, table, len(pending))

		failed := s.round(ctx, pending)
		s.recorder.RecordSagaRound(ctx, table, attempt, len(failed))
		if len(failed) == 0 {
			logger.Infof("All workers completed successfully for table %s.", table)
			return nil
		}

		ids := lo.Map(failed, func(u model.WorkUnit, _ int) int { return u.WorkerID })
		logger.Warnf("Workers %v failed for table %s in attempt %d.", ids, table, attempt)

		if attempt >= s.maxAttempts {
			logger.Errorf("Failed to complete all workers for table %s after %d attempts; completed workers: %v.",
				table, s.maxAttempts, pending[0].Completion.Completed())
			return exception.NewSagaExhausted(moduleName,
				fmt.Sprintf("table %s: workers %v still failing after %d attempts", table, ids, s.maxAttempts))
		}
		if err := ctx.Err(); err != nil {
			return exception.NewBatchError(moduleName, "saga interrupted", err, false, false)
		}
		if !s.decider.ShouldRetry(ctx, table, ids) {
			logger.Infof("Retry of workers %v for table %s was declined.", ids, table)
			return exception.NewSagaExhausted(moduleName,
				fmt.Sprintf("table %s: retry of workers %v declined after attempt %d", table, ids, attempt))
		}
		pending = failed
	}
}

// round runs units in parallel, waits for all of them and returns the failed ones.
func (s *SagaCoordinator) round(ctx context.Context, units []model.WorkUnit) []model.WorkUnit {
	results := make([]bool, len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u model.WorkUnit) {
			defer wg.Done()
			results[i] = s.runner.Run(ctx, u)
		}(i, u)
	}
	wg.Wait()

	return lo.Filter(units, func(_ model.WorkUnit, i int) bool { return !results[i] })
}
