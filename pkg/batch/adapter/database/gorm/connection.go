package gorm

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/tablesync/pkg/batch/adapter/database/config"
	"github.com/tigerroll/tablesync/pkg/batch/adapter/database/query"
	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const moduleName = "gorm"

// maxBindParams keeps a multi-row INSERT under the bind-parameter limits of every
// supported server (PostgreSQL and MySQL 65535, SQLite 32766).
const maxBindParams = 32000

// executor implements database.RowExecutor on a *gorm.DB, which is either a pool
// or an open transaction.
type executor struct {
	db *gorm.DB
}

func (e executor) session(ctx context.Context) *gorm.DB {
	return e.db.WithContext(ctx)
}

func applyFilter(db *gorm.DB, f model.Filter) *gorm.DB {
	for _, c := range f.Conditions {
		col := clause.Column{Name: c.Column}
		switch c.Op {
		case model.OpGte:
			db = db.Where(clause.Gte{Column: col, Value: c.Value})
		case model.OpLt:
			db = db.Where(clause.Lt{Column: col, Value: c.Value})
		case model.OpEq:
			db = db.Where(clause.Eq{Column: col, Value: c.Value})
		}
	}
	return db
}

func selectColumns(columns []string) clause.Select {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	return clause.Select{Columns: cols}
}

func orderBy(column string) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: column}}
}

// ProbeColumns implements database.RowExecutor.
func (e executor) ProbeColumns(ctx context.Context, table string) ([]string, error) {
	if err := query.ValidateTable(table); err != nil {
		return nil, err
	}
	rows, err := e.session(ctx).Table(table).Limit(0).Rows()
	if err != nil {
		return nil, exception.NewQueryError(moduleName, "schema probe of "+table+" failed", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, exception.NewQueryError(moduleName, "reading columns of "+table+" failed", err)
	}
	return cols, nil
}

// Count implements database.RowExecutor.
func (e executor) Count(ctx context.Context, q query.Count) (int64, error) {
	var n int64
	if err := applyFilter(e.session(ctx).Table(q.Table), q.Filter).Count(&n).Error; err != nil {
		return 0, exception.NewQueryError(moduleName, "count of "+q.Table+" failed", err)
	}
	return n, nil
}

// FetchPage implements database.RowExecutor.
func (e executor) FetchPage(ctx context.Context, q query.Page) ([]model.Row, error) {
	db := applyFilter(e.session(ctx).Table(q.Table), q.Filter).
		Clauses(selectColumns(q.Columns)).
		Order(orderBy(q.OrderBy)).
		Limit(int(q.Limit)).
		Offset(int(q.Offset))
	rows, err := db.Rows()
	if err != nil {
		return nil, exception.NewQueryError(moduleName, "fetch from "+q.Table+" failed", err)
	}
	defer rows.Close()

	page := make([]model.Row, 0, q.Limit)
	if err := readRows(rows, func(r model.Row) error {
		page = append(page, r)
		return nil
	}); err != nil {
		return nil, exception.NewQueryError(moduleName, "reading rows of "+q.Table+" failed", err)
	}
	return page, nil
}

// Scan implements database.RowExecutor.
func (e executor) Scan(ctx context.Context, q query.Scan, fn func(model.Row) error) error {
	db := applyFilter(e.session(ctx).Table(q.Table), q.Filter).
		Clauses(selectColumns(q.Columns)).
		Order(orderBy(q.OrderBy))
	rows, err := db.Rows()
	if err != nil {
		return exception.NewQueryError(moduleName, "scan of "+q.Table+" failed", err)
	}
	defer rows.Close()
	if err := readRows(rows, fn); err != nil {
		return exception.NewQueryError(moduleName, "reading rows of "+q.Table+" failed", err)
	}
	return nil
}

func readRows(rows *sql.Rows, fn func(model.Row) error) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		row := make(model.Row, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// InsertRows implements database.RowExecutor.
func (e executor) InsertRows(ctx context.Context, q query.Insert) (int64, error) {
	if len(q.Rows) == 0 {
		return 0, nil
	}
	records := make([]map[string]interface{}, len(q.Rows))
	for i, r := range q.Rows {
		rec := make(map[string]interface{}, len(q.Columns))
		for j, c := range q.Columns {
			rec[c] = r[j]
		}
		records[i] = rec
	}
	batch := maxBindParams / len(q.Columns)
	if batch < 1 {
		batch = 1
	}
	db := e.session(ctx).Session(&gorm.Session{CreateBatchSize: batch}).Table(q.Table)
	if q.ConflictKey != "" {
		db = db.Clauses(onConflict(q))
	}
	res := db.Create(records)
	if res.Error != nil {
		return 0, exception.NewQueryError(moduleName, "insert into "+q.Table+" failed", res.Error)
	}
	return res.RowsAffected, nil
}

// onConflict overwrites every non-key column of a row whose key already exists.
func onConflict(q query.Insert) clause.OnConflict {
	oc := clause.OnConflict{Columns: []clause.Column{{Name: q.ConflictKey}}}
	if cols := q.NonKeyColumns(); len(cols) > 0 {
		oc.DoUpdates = clause.AssignmentColumns(cols)
	} else {
		oc.DoNothing = true
	}
	return oc
}

// UpdateRows implements database.RowExecutor.
func (e executor) UpdateRows(ctx context.Context, q query.Update) (int64, error) {
	var affected int64
	for _, r := range q.Rows {
		values := make(map[string]interface{}, len(q.Columns))
		for j, c := range q.Columns {
			values[c] = r[j+1]
		}
		res := e.session(ctx).Table(q.Table).
			Where(clause.Eq{Column: clause.Column{Name: q.Key}, Value: r[0]}).
			Updates(values)
		if res.Error != nil {
			return affected, exception.NewQueryError(moduleName, "update of "+q.Table+" failed", res.Error)
		}
		affected += res.RowsAffected
	}
	return affected, nil
}

// DeleteAll implements database.RowExecutor.
func (e executor) DeleteAll(ctx context.Context, q query.Delete) (int64, error) {
	res := e.session(ctx).Exec("DELETE FROM ?", clause.Table{Name: q.Table})
	if res.Error != nil {
		return 0, exception.NewQueryError(moduleName, "clearing "+q.Table+" failed", res.Error)
	}
	return res.RowsAffected, nil
}

// GormTx implements database.Tx.
type GormTx struct {
	executor
}

// Commit implements database.Tx.
func (t *GormTx) Commit() error {
	if err := t.db.Commit().Error; err != nil {
		return exception.NewQueryError(moduleName, "commit failed", err)
	}
	return nil
}

// Rollback implements database.Tx.
func (t *GormTx) Rollback() error {
	return t.db.Rollback().Error
}

// GormConnection implements database.DBConnection on its own connection pool.
type GormConnection struct {
	executor
	sqlDB     *sql.DB
	cfg       dbconfig.DatabaseConfig
	name      string
	isolation sql.IsolationLevel
}

// NewGormConnection wraps db. isolation is used by Begin.
func NewGormConnection(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string, isolation sql.IsolationLevel) (*GormConnection, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.NewConnectionError(moduleName, "failed to get underlying *sql.DB", err)
	}
	return &GormConnection{
		executor:  executor{db: db},
		sqlDB:     sqlDB,
		cfg:       cfg,
		name:      name,
		isolation: isolation,
	}, nil
}

// Begin implements database.DBConnection.
func (c *GormConnection) Begin(ctx context.Context) (database.Tx, error) {
	tx := c.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: c.isolation})
	if tx.Error != nil {
		return nil, exception.NewConnectionError(moduleName, "begin transaction on "+c.name+" failed", tx.Error)
	}
	return &GormTx{executor: executor{db: tx}}, nil
}

// Ping implements database.DBConnection.
func (c *GormConnection) Ping(ctx context.Context) error {
	if err := c.sqlDB.PingContext(ctx); err != nil {
		return exception.NewConnectionError(moduleName, "ping "+c.name+" failed", err)
	}
	return nil
}

// GormDB returns the underlying *gorm.DB for components that need gorm directly.
func (c *GormConnection) GormDB() *gorm.DB {
	return c.db
}

// SQLDB returns the underlying *sql.DB.
func (c *GormConnection) SQLDB() *sql.DB {
	return c.sqlDB
}

// Name implements database.DBConnection.
func (c *GormConnection) Name() string {
	return c.name
}

// Type implements database.DBConnection.
func (c *GormConnection) Type() string {
	return c.cfg.Type
}

// Close implements database.DBConnection.
func (c *GormConnection) Close() error {
	logger.Debugf("Closing database connection '%s'.", c.name)
	return c.sqlDB.Close()
}

var (
	_ database.DBConnection = (*GormConnection)(nil)
	_ database.Tx           = (*GormTx)(nil)
)
