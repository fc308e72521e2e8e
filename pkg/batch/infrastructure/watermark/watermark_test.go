package watermark_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/infrastructure/watermark"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	"github.com/tigerroll/tablesync/pkg/batch/test"
)

func TestParseTimestamp(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)

	ts, err := watermark.ParseTimestamp("2024-01-01T00:00:00Z", tokyo)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	ts, err = watermark.ParseTimestamp("2024-01-01T09:00:00.123456", tokyo)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 123456000, time.UTC)))

	ts, err = watermark.ParseTimestamp("2024-01-01 00:00:00\n", nil)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = watermark.ParseTimestamp("yesterday", nil)
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "last_sync.txt")
	store := watermark.NewFileStore(path, time.UTC)

	ts, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	want := time.Date(2024, 3, 5, 12, 30, 0, 250, time.FixedZone("X", -5*3600))
	require.NoError(t, store.Set(ctx, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T17:30:00.00000025Z\n", string(data))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_EmptyAndCorruptFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	ts, err := watermark.NewFileStore(empty, nil).Get(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	corrupt := filepath.Join(dir, "corrupt.txt")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a time"), 0o644))
	_, err = watermark.NewFileStore(corrupt, nil).Get(ctx)
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
}

func TestDBStore_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := test.NewSQLiteConfig(t, "meta")
	store := watermark.NewDBStore(gormadapter.NewProvider(cfg), "meta", "users-sync", time.UTC)

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	ts, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, first))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, first.Equal(got))

	second := first.Add(36 * time.Hour)
	require.NoError(t, store.Set(ctx, second))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, second.Equal(got))

	other := watermark.NewDBStore(gormadapter.NewProvider(cfg), "meta", "other", time.UTC)
	ts, err = other.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestNewStore(t *testing.T) {
	cfg := test.NewSQLiteConfig(t, "source", "target")

	store, err := watermark.NewStore(cfg, gormadapter.NewProvider(cfg))
	require.NoError(t, err)
	ts, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	cfg.Tablesync.Watermark.Store = config.WatermarkStoreDatabase
	store, err = watermark.NewStore(cfg, gormadapter.NewProvider(cfg))
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), test.Epoch))

	cfg.Tablesync.Watermark.Store = "etcd"
	_, err = watermark.NewStore(cfg, gormadapter.NewProvider(cfg))
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
}
