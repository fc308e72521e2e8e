package validation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/validation"
	"github.com/tigerroll/tablesync/pkg/batch/test"
)

func setup(t *testing.T, rows int64) (*validation.Validator, *gorm.DB, *gorm.DB) {
	t.Helper()
	cfg := test.NewSQLiteConfig(t, "source", "target")
	source := test.Open(t, cfg, "source")
	target := test.Open(t, cfg, "target")
	for _, db := range []*gorm.DB{source, target} {
		test.CreateTable(t, db, "users")
		test.Seed(t, db, "users", 1, rows+1, test.Epoch)
	}
	return validation.NewValidator(gormadapter.NewProvider(cfg), "source", "target", nil), source, target
}

func TestValidator_IdenticalTables(t *testing.T) {
	v, _, _ := setup(t, 50)

	result, err := v.Validate(context.Background(), "users", "id", model.Filter{})
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, int64(50), result.SourceCount)
	assert.Equal(t, int64(50), result.TargetCount)
	assert.Len(t, result.SourceHash, 64)
	assert.Equal(t, result.SourceHash, result.TargetHash)
	assert.True(t, v.ValidateTable(context.Background(), "users", "id", model.Filter{}))
}

func TestValidator_SingleCellDiffers(t *testing.T) {
	v, _, target := setup(t, 50)
	require.NoError(t, target.Exec("UPDATE users SET name = 'changed' WHERE id = 17").Error)

	result, err := v.Validate(context.Background(), "users", "id", model.Filter{})
	require.NoError(t, err)
	assert.True(t, result.RowCountMatch)
	assert.False(t, result.ContentHashMatch)
	assert.NotEqual(t, result.SourceHash, result.TargetHash)
	assert.False(t, result.OK())
}

func TestValidator_ExtraTargetRowSkipsHashing(t *testing.T) {
	v, _, target := setup(t, 50)
	test.Seed(t, target, "users", 51, 52, test.Epoch)

	result, err := v.Validate(context.Background(), "users", "id", model.Filter{})
	require.NoError(t, err)
	assert.False(t, result.RowCountMatch)
	assert.Equal(t, int64(50), result.SourceCount)
	assert.Equal(t, int64(51), result.TargetCount)
	assert.Empty(t, result.SourceHash)
	assert.Empty(t, result.TargetHash)
	assert.False(t, v.ValidateTable(context.Background(), "users", "id", model.Filter{}))
}

func TestValidator_FilterLimitsComparedRows(t *testing.T) {
	v, _, target := setup(t, 50)
	require.NoError(t, target.Exec("UPDATE users SET name = 'changed' WHERE id = 5").Error)
	filter := model.NewFilter(model.Gte("created_at", test.Epoch.Add(10*time.Second)))

	result, err := v.Validate(context.Background(), "users", "id", filter)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, int64(41), result.SourceCount)
}

func TestValidator_MissingTargetTableIsAnError(t *testing.T) {
	cfg := test.NewSQLiteConfig(t, "source", "target")
	source := test.Open(t, cfg, "source")
	test.Open(t, cfg, "target")
	test.CreateTable(t, source, "users")

	v := validation.NewValidator(gormadapter.NewProvider(cfg), "source", "target", nil)
	_, err := v.Validate(context.Background(), "users", "id", model.Filter{})
	assert.Error(t, err)
}
