package model_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

func TestNewTableDescriptor_MovesPrimaryKeyFirst(t *testing.T) {
	d, err := model.NewTableDescriptor("users", []string{"name", "id", "created_at"}, "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "created_at"}, d.Columns)
	assert.Equal(t, "id", d.PrimaryKey())
	assert.Equal(t, []string{"name", "created_at"}, d.NonKeyColumns())
	assert.True(t, d.HasColumn("CREATED_AT"))
	assert.False(t, d.HasColumn("email"))
	assert.NoError(t, d.Validate())
}

func TestNewTableDescriptor_Rejects(t *testing.T) {
	_, err := model.NewTableDescriptor("users;--", []string{"id"}, "id")
	assert.Error(t, err)

	_, err = model.NewTableDescriptor("users", []string{"id", "na me"}, "id")
	assert.Error(t, err)

	_, err = model.NewTableDescriptor("users", []string{"id", "ID"}, "id")
	assert.Error(t, err)

	_, err = model.NewTableDescriptor("users", []string{"name"}, "id")
	assert.Error(t, err)
}

func TestMode_ParseAndString(t *testing.T) {
	for _, m := range []model.Mode{model.ModeCopy, model.ModeInsert, model.ModeUpdate} {
		parsed, err := model.ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := model.ParseMode("merge")
	assert.Error(t, err)

	assert.True(t, model.ModeCopy.ClearsTarget())
	assert.False(t, model.ModeInsert.ClearsTarget())
	assert.False(t, model.ModeUpdate.ClearsTarget())
}

func TestFilter_String(t *testing.T) {
	wm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "<all rows>", model.Filter{}.String())
	assert.Equal(t, "created_at >= 2024-01-01T00:00:00Z", model.NewFilter(model.Gte("created_at", wm)).String())
}

func TestCompletionState_ConcurrentWriters(t *testing.T) {
	state := model.NewCompletionState()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if id%2 == 0 {
				state.MarkComplete(id)
			}
			_ = state.IsComplete(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14}, state.Completed())
	assert.True(t, state.IsComplete(4))
	assert.False(t, state.IsComplete(5))
}

func TestCompletionState_CommittedRows(t *testing.T) {
	state := model.NewCompletionState()
	assert.Equal(t, int64(0), state.Committed(1))
	state.RecordCommit(1, 5000)
	state.RecordCommit(1, 10000)
	assert.Equal(t, int64(10000), state.Committed(1))
	assert.Equal(t, int64(0), state.Committed(2))
	assert.False(t, state.IsComplete(1))
}

func TestRangeAndWorkUnit(t *testing.T) {
	r := model.Range{Start: 3000, End: 6000}
	assert.Equal(t, int64(3000), r.Len())
	assert.Equal(t, "[3000,6000)", r.String())
	assert.Equal(t, "partition2", model.WorkUnit{WorkerID: 2}.Name())
}

func TestValidationResult_OK(t *testing.T) {
	assert.True(t, model.ValidationResult{RowCountMatch: true, ContentHashMatch: true}.OK())
	assert.False(t, model.ValidationResult{RowCountMatch: true}.OK())
}
