package partitioner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tablesync/pkg/batch/component/partitioner"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

func TestRangePartitioner_EvenSplit(t *testing.T) {
	ranges, err := partitioner.NewRangePartitioner().Partition(12000, 4)
	require.NoError(t, err)
	assert.Equal(t, []model.Range{
		{Start: 0, End: 3000},
		{Start: 3000, End: 6000},
		{Start: 6000, End: 9000},
		{Start: 9000, End: 12000},
	}, ranges)
}

func TestRangePartitioner_LastAbsorbsRemainder(t *testing.T) {
	ranges, err := partitioner.NewRangePartitioner().Partition(10, 3)
	require.NoError(t, err)
	assert.Equal(t, []model.Range{{Start: 0, End: 3}, {Start: 3, End: 6}, {Start: 6, End: 10}}, ranges)
}

func TestRangePartitioner_FewerRowsThanWorkers(t *testing.T) {
	ranges, err := partitioner.NewRangePartitioner().Partition(2, 4)
	require.NoError(t, err)
	assert.Equal(t, []model.Range{{Start: 0, End: 1}, {Start: 1, End: 2}}, ranges)
}

func TestRangePartitioner_ZeroRows(t *testing.T) {
	ranges, err := partitioner.NewRangePartitioner().Partition(0, 4)
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestRangePartitioner_InvalidWorkerCount(t *testing.T) {
	for _, workers := range []int{0, -1} {
		_, err := partitioner.NewRangePartitioner().Partition(100, workers)
		assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
	}
}

func TestRangePartitioner_CoverageProperty(t *testing.T) {
	p := partitioner.NewRangePartitioner()
	for total := int64(0); total <= 200; total++ {
		for workers := 1; workers <= 17; workers++ {
			ranges, err := p.Partition(total, workers)
			require.NoError(t, err)

			next := int64(0)
			for _, r := range ranges {
				require.Equal(t, next, r.Start, "total=%d workers=%d", total, workers)
				require.Greater(t, r.End, r.Start, "total=%d workers=%d", total, workers)
				next = r.End
			}
			require.Equal(t, total, next, "total=%d workers=%d", total, workers)
			require.LessOrEqual(t, len(ranges), workers)
		}
	}
}

func TestWorkUnits(t *testing.T) {
	completion := model.NewCompletionState()
	filter := model.NewFilter(model.Eq("id", 1))
	units := partitioner.WorkUnits("users", "id", []model.Range{{Start: 0, End: 5}, {Start: 5, End: 9}}, model.ModeInsert, filter, completion)

	require.Len(t, units, 2)
	assert.Equal(t, 0, units[0].WorkerID)
	assert.Equal(t, 1, units[1].WorkerID)
	assert.Equal(t, model.Range{Start: 5, End: 9}, units[1].Range)
	assert.Equal(t, model.ModeInsert, units[1].Mode)
	assert.Equal(t, "id", units[1].PrimaryKey)
	assert.Same(t, completion, units[0].Completion)
	assert.Same(t, completion, units[1].Completion)
}
