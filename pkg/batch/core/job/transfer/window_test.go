package transfer_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tablesync/pkg/batch/adapter/database/query"
	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/core/job/transfer"
	"github.com/tigerroll/tablesync/pkg/batch/test"
)

func TestWindows_AreDisjoint(t *testing.T) {
	ctx := context.Background()
	wm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := config.TableConfig{Name: "users", CreatedAtColumn: "created_at", UpdatedAtColumn: "updated_at"}
	insert := transfer.InsertWindow(table, wm)
	update := transfer.UpdateWindow(table, wm)

	cases := []struct {
		name             string
		created, updated time.Time
		inInsert         bool
		inUpdate         bool
	}{
		{"created at watermark", wm, wm, true, false},
		{"created after watermark and modified", wm.Add(time.Hour), wm.Add(2 * time.Hour), true, false},
		{"modified after watermark", wm.Add(-time.Hour), wm.Add(time.Minute), false, true},
		{"modified at watermark", wm.Add(-time.Hour), wm, false, true},
		{"untouched", wm.Add(-time.Hour), wm.Add(-time.Minute), false, false},
	}

	cfg := test.NewSQLiteConfig(t, "source")
	db := test.Open(t, cfg, "source")
	test.CreateTable(t, db, "users")
	for i, tc := range cases {
		require.NoError(t, db.Table("users").Create(map[string]interface{}{
			"id": int64(i + 1), "name": tc.name, "created_at": tc.created, "updated_at": tc.updated,
		}).Error)
	}

	conn, err := gormadapter.NewProvider(cfg).Connect(ctx, "source", sql.LevelDefault)
	require.NoError(t, err)
	defer conn.Close()
	desc, err := database.Describe(ctx, conn, "users", "id")
	require.NoError(t, err)

	matches := func(t *testing.T, window model.Filter, id int64) bool {
		t.Helper()
		conds := append(append([]model.Condition{}, window.Conditions...), model.Eq("id", id))
		q, err := query.NewCount(desc, model.NewFilter(conds...))
		require.NoError(t, err)
		n, err := conn.Count(ctx, q)
		require.NoError(t, err)
		return n == 1
	}

	for i, tc := range cases {
		id := int64(i + 1)
		t.Run(tc.name, func(t *testing.T) {
			in := matches(t, insert, id)
			up := matches(t, update, id)
			assert.Equal(t, tc.inInsert, in)
			assert.Equal(t, tc.inUpdate, up)
			assert.False(t, in && up)
		})
	}
}
