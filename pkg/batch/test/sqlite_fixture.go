// Package test holds fixtures shared by package tests: throwaway SQLite databases and
// connection providers that fail on demand.
package test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/tablesync/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/tablesync/pkg/batch/core/config"
)

// SQLiteParams lets concurrent workers share one database file.
var SQLiteParams = map[string]interface{}{
	"_busy_timeout": "10000",
	"_journal_mode": "WAL",
}

// Epoch is the base timestamp of seeded rows.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewSQLiteConfig returns a configuration with one SQLite database file per name, all in a
// temporary directory removed when the test ends.
func NewSQLiteConfig(t testing.TB, names ...string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	for _, name := range names {
		cfg.Tablesync.AdaptorConfigs[name] = map[string]interface{}{
			"type":     "sqlite",
			"database": filepath.Join(dir, name+".db"),
			"params":   SQLiteParams,
			"pool":     map[string]interface{}{"max_open_conns": 1},
		}
	}
	if len(names) >= 2 {
		cfg.Tablesync.Infrastructure.SourceDBRef = names[0]
		cfg.Tablesync.Infrastructure.TargetDBRef = names[1]
	}
	cfg.Tablesync.Watermark.Path = filepath.Join(dir, "last_sync.txt")
	return cfg
}

// Open opens name from cfg and closes it when the test ends.
func Open(t testing.TB, cfg *config.Config, name string) *gorm.DB {
	t.Helper()
	conn, err := gormadapter.NewProvider(cfg).Open(context.Background(), name, sql.LevelDefault)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn.GormDB()
}

// CreateTable creates a table shaped like the replicated tables.
func CreateTable(t testing.TB, db *gorm.DB, table string) {
	t.Helper()
	require.NoError(t, db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		score REAL,
		note TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`, table)).Error)
}

// Record returns the seeded row for id, created id seconds after createdAt.
func Record(id int64, createdAt time.Time) map[string]interface{} {
	ts := createdAt.Add(time.Duration(id) * time.Second)
	return map[string]interface{}{
		"id":         id,
		"name":       fmt.Sprintf("name-%d", id),
		"score":      float64(id) / 4,
		"note":       nil,
		"created_at": ts,
		"updated_at": ts,
	}
}

// Seed inserts rows with ids [from, to) into table.
func Seed(t testing.TB, db *gorm.DB, table string, from, to int64, createdAt time.Time) {
	t.Helper()
	if to <= from {
		return
	}
	records := make([]map[string]interface{}, 0, to-from)
	for id := from; id < to; id++ {
		records = append(records, Record(id, createdAt))
	}
	require.NoError(t, db.Table(table).Session(&gorm.Session{CreateBatchSize: 1000}).Create(records).Error)
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

// DatabaseConfig decodes the entry for name, for tests that need the raw settings.
func DatabaseConfig(t testing.TB, cfg *config.Config, name string) dbconfig.DatabaseConfig {
	t.Helper()
	c, err := gormadapter.NewProvider(cfg).Resolve(name)
	require.NoError(t, err)
	return c
}
