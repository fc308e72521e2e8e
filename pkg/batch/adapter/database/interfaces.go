// Package database defines the connection contracts consumed by the transfer engine.
package database

import (
	"context"
	"database/sql"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database/query"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

// RowExecutor is the Row-Batch I/O surface shared by connections and transactions.
type RowExecutor interface {
	// ProbeColumns returns the table's column names in database order, using a zero-row query.
	ProbeColumns(ctx context.Context, table string) ([]string, error)
	// Count returns the number of rows matching the count's filter.
	Count(ctx context.Context, q query.Count) (int64, error)
	// FetchPage returns one primary-key ordered page of rows.
	FetchPage(ctx context.Context, q query.Page) ([]model.Row, error)
	// Scan streams every matching row in primary-key order to fn.
	Scan(ctx context.Context, q query.Scan, fn func(model.Row) error) error
	// InsertRows bulk-inserts rows, upserting on the conflict key when one is set, and
	// returns the driver's affected-row count.
	InsertRows(ctx context.Context, q query.Insert) (int64, error)
	// UpdateRows updates the non-key columns of each row by primary key.
	UpdateRows(ctx context.Context, q query.Update) (int64, error)
	// DeleteAll removes every row of the table.
	DeleteAll(ctx context.Context, q query.Delete) (int64, error)
}

// Tx is a transaction on a DBConnection.
type Tx interface {
	RowExecutor
	Commit() error
	Rollback() error
}

// DBConnection is one exclusive database session.
type DBConnection interface {
	RowExecutor
	// Begin starts a transaction at the isolation level the connection was opened with.
	Begin(ctx context.Context) (Tx, error)
	// Ping verifies the session is alive.
	Ping(ctx context.Context) error
	Name() string
	Type() string
	Close() error
}

// ConnectionProvider opens connections by database name.
type ConnectionProvider interface {
	// Connect opens a fresh connection. isolation applies to transactions begun on it;
	// sql.LevelDefault leaves the server default in place.
	Connect(ctx context.Context, name string, isolation sql.IsolationLevel) (DBConnection, error)
}
