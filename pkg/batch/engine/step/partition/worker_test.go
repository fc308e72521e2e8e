package partition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tablesync/pkg/batch/core/metrics"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/partition"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/retry"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	"github.com/tigerroll/tablesync/pkg/batch/test"
)

type fixture struct {
	provider *gormadapter.Provider
	source   *gorm.DB
	target   *gorm.DB
}

func newFixture(t *testing.T, sourceRows int64) fixture {
	t.Helper()
	cfg := test.NewSQLiteConfig(t, "source", "target")
	f := fixture{
		provider: gormadapter.NewProvider(cfg),
		source:   test.Open(t, cfg, "source"),
		target:   test.Open(t, cfg, "target"),
	}
	test.CreateTable(t, f.source, "users")
	test.CreateTable(t, f.target, "users")
	test.Seed(t, f.source, "users", 1, sourceRows+1, test.Epoch)
	return f
}

func worker(p database.ConnectionProvider, batchSize int) *partition.Worker {
	return partition.NewWorker(p, "source", "target", batchSize,
		retry.NewFixedIntervalPolicy(3, time.Millisecond),
		metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())
}

func targetIDs(t *testing.T, db *gorm.DB) []int64 {
	t.Helper()
	var ids []int64
	require.NoError(t, db.Table("users").Order("id").Pluck("id", &ids).Error)
	return ids
}

func TestWorker_CopiesItsRangeInBatches(t *testing.T) {
	f := newFixture(t, 23)
	unit := model.WorkUnit{WorkerID: 1, Table: "users", Range: model.Range{Start: 5, End: 17}, Mode: model.ModeCopy, Completion: model.NewCompletionState()}

	require.True(t, worker(f.provider, 5).Run(context.Background(), unit))

	ids := targetIDs(t, f.target)
	require.Len(t, ids, 12)
	assert.Equal(t, int64(6), ids[0])
	assert.Equal(t, int64(17), ids[11])
	assert.True(t, unit.Completion.IsComplete(1))
	assert.Equal(t, int64(12), unit.Completion.Committed(1))
}

func TestWorker_AppliesFilter(t *testing.T) {
	f := newFixture(t, 20)
	filter := model.NewFilter(model.Gte("created_at", test.Epoch.Add(16*time.Second)))
	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 5}, Mode: model.ModeInsert, Filter: filter}

	require.True(t, worker(f.provider, 2).Run(context.Background(), unit))
	assert.Equal(t, []int64{16, 17, 18, 19, 20}, targetIDs(t, f.target))
}

func TestWorker_InsertModeOverwritesExistingRows(t *testing.T) {
	f := newFixture(t, 20)
	test.Seed(t, f.target, "users", 16, 18, test.Epoch)
	require.NoError(t, f.target.Exec("UPDATE users SET name = 'stale'").Error)
	filter := model.NewFilter(model.Gte("created_at", test.Epoch.Add(16*time.Second)))
	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 5}, Mode: model.ModeInsert, Filter: filter}

	require.True(t, worker(f.provider, 2).Run(context.Background(), unit))

	var names []string
	require.NoError(t, f.target.Table("users").Order("id").Pluck("name", &names).Error)
	assert.Equal(t, []string{"name-16", "name-17", "name-18", "name-19", "name-20"}, names)
}

func TestWorker_ShrunkSourceFailsTheUnit(t *testing.T) {
	f := newFixture(t, 10)
	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 15}, Mode: model.ModeCopy, Completion: model.NewCompletionState()}

	assert.False(t, worker(f.provider, 100).Run(context.Background(), unit))
	assert.False(t, unit.Completion.IsComplete(0))
	assert.Equal(t, int64(10), unit.Completion.Committed(0))
	assert.Len(t, targetIDs(t, f.target), 10)
}

func TestWorker_ResumesAfterCommittedRows(t *testing.T) {
	f := newFixture(t, 20)
	state := model.NewCompletionState()
	state.RecordCommit(0, 10)
	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 20}, Mode: model.ModeCopy, Completion: state}

	require.True(t, worker(f.provider, 4).Run(context.Background(), unit))

	ids := targetIDs(t, f.target)
	require.Len(t, ids, 10)
	assert.Equal(t, int64(11), ids[0])
}

func TestWorker_UpdateMode(t *testing.T) {
	f := newFixture(t, 10)
	test.Seed(t, f.target, "users", 1, 11, test.Epoch)
	require.NoError(t, f.target.Exec("UPDATE users SET name = 'stale'").Error)

	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 10}, Mode: model.ModeUpdate}
	require.True(t, worker(f.provider, 3).Run(context.Background(), unit))

	var names []string
	require.NoError(t, f.target.Table("users").Order("id").Pluck("name", &names).Error)
	require.Len(t, names, 10)
	assert.Equal(t, "name-1", names[0])
	assert.Equal(t, "name-10", names[9])
}

func TestWorker_RetriesTransientConnectionErrors(t *testing.T) {
	f := newFixture(t, 10)
	flaky := &test.FlakyProvider{
		Inner:    f.provider,
		Name:     "target",
		Failures: 2,
		Err:      exception.NewConnectionError("test", "connect failed", errors.New("connection refused")),
	}
	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 10}, Mode: model.ModeCopy}

	require.True(t, worker(flaky, 100).Run(context.Background(), unit))
	assert.Equal(t, 3, flaky.Calls("target"))
	assert.Len(t, targetIDs(t, f.target), 10)
}

func TestWorker_GivesUpAfterThreeRetries(t *testing.T) {
	f := newFixture(t, 10)
	flaky := &test.FlakyProvider{
		Inner:    f.provider,
		Name:     "target",
		Failures: 100,
		Err:      exception.NewConnectionError("test", "connect failed", errors.New("connection refused")),
	}
	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 10}, Mode: model.ModeCopy, Completion: model.NewCompletionState()}

	assert.False(t, worker(flaky, 100).Run(context.Background(), unit))
	assert.Equal(t, 4, flaky.Calls("target"))
	assert.False(t, unit.Completion.IsComplete(0))
}

func TestWorker_ConstraintViolationIsNotRetried(t *testing.T) {
	f := newFixture(t, 10)
	test.Seed(t, f.target, "users", 3, 4, test.Epoch)
	flaky := &test.FlakyProvider{Inner: f.provider}
	unit := model.WorkUnit{WorkerID: 0, Table: "users", Range: model.Range{Start: 0, End: 10}, Mode: model.ModeCopy}

	assert.False(t, worker(flaky, 100).Run(context.Background(), unit))
	assert.Equal(t, 1, flaky.Calls("target"))
	assert.Equal(t, []int64{3}, targetIDs(t, f.target))
}

func TestWorker_SkipsCompletedUnit(t *testing.T) {
	provider := &test.MockConnectionProvider{}
	state := model.NewCompletionState()
	state.MarkComplete(2)
	unit := model.WorkUnit{WorkerID: 2, Table: "users", Range: model.Range{Start: 0, End: 10}, Mode: model.ModeCopy, Completion: state}

	assert.True(t, worker(provider, 100).Run(context.Background(), unit))
	provider.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_InvalidTableIsNotRetried(t *testing.T) {
	f := newFixture(t, 1)
	flaky := &test.FlakyProvider{Inner: f.provider}
	unit := model.WorkUnit{WorkerID: 0, Table: "users;drop", Range: model.Range{Start: 0, End: 1}, Mode: model.ModeCopy}

	assert.False(t, worker(flaky, 100).Run(context.Background(), unit))
	assert.Equal(t, 1, flaky.Calls("source"))
}
