package watermark

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm/clause"

	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	core "github.com/tigerroll/tablesync/pkg/batch/core/watermark"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const (
	watermarkTable  = "tablesync_watermark"
	migrationsTable = "tablesync_schema_migrations"
)

//go:embed resource
var migrationFS embed.FS

// DBStore keeps watermarks in the tablesync_watermark table, one row per key.
// Every call opens its own connection from the provider.
type DBStore struct {
	provider *gormadapter.Provider
	dbRef    string
	key      string
	loc      *time.Location
}

// NewDBStore creates a DBStore on the database named dbRef.
func NewDBStore(provider *gormadapter.Provider, dbRef, key string, loc *time.Location) *DBStore {
	if key == "" {
		key = "default"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DBStore{provider: provider, dbRef: dbRef, key: key, loc: loc}
}

// Migrate creates the watermark table if it does not exist.
func (s *DBStore) Migrate(ctx context.Context) error {
	// migrate closes the *sql.DB it is given, so it gets a connection of its own.
	conn, err := s.provider.Open(ctx, s.dbRef, sql.LevelDefault)
	if err != nil {
		return err
	}
	dbType := conn.Type()

	driver, err := migrationDriver(dbType, conn.SQLDB())
	if err != nil {
		_ = conn.Close()
		return err
	}
	sub, err := fs.Sub(migrationFS, "resource/"+dbType)
	if err != nil {
		_ = driver.Close()
		return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("no watermark migrations for %s", dbType))
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		_ = driver.Close()
		return exception.NewBatchError(moduleName, "failed to load watermark migrations", err, false, false)
	}
	m, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		_ = driver.Close()
		return exception.NewBatchError(moduleName, "failed to create migrate instance", err, false, false)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewBatchError(moduleName, fmt.Sprintf("watermark migration failed on %s", s.dbRef), err, false, false)
	}
	logger.Debugf("Watermark table on '%s' is up to date.", s.dbRef)
	return nil
}

func migrationDriver(dbType string, db *sql.DB) (migratedb.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: migrationsTable})
	default:
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unsupported database type for watermark store: %s", dbType))
	}
}

// Get implements watermark.Store. A missing row yields the zero time.
func (s *DBStore) Get(ctx context.Context) (time.Time, error) {
	conn, err := s.provider.Open(ctx, s.dbRef, sql.LevelDefault)
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Close()

	var values []string
	err = conn.GormDB().WithContext(ctx).Table(watermarkTable).
		Where(clause.Eq{Column: clause.Column{Name: "name"}, Value: s.key}).
		Limit(1).
		Pluck("synced_at", &values).Error
	if err != nil {
		return time.Time{}, exception.NewQueryError(moduleName, "failed to read watermark", err)
	}
	if len(values) == 0 || values[0] == "" {
		return time.Time{}, nil
	}
	ts, err := ParseTimestamp(values[0], s.loc)
	if err != nil {
		return time.Time{}, exception.NewBatchError(moduleName, "stored watermark is corrupt", errors.Join(exception.ErrInvalidConfiguration, err), false, false)
	}
	return ts, nil
}

// Set implements watermark.Store by upserting the key's row.
func (s *DBStore) Set(ctx context.Context, ts time.Time) error {
	conn, err := s.provider.Open(ctx, s.dbRef, sql.LevelDefault)
	if err != nil {
		return err
	}
	defer conn.Close()

	row := map[string]interface{}{
		"name":       s.key,
		"synced_at":  FormatTimestamp(ts),
		"updated_at": FormatTimestamp(time.Now()),
	}
	err = conn.GormDB().WithContext(ctx).Table(watermarkTable).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"synced_at", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return exception.NewQueryError(moduleName, "failed to store watermark", err)
	}
	logger.Infof("Watermark '%s' set to %s.", s.key, FormatTimestamp(ts))
	return nil
}

var _ core.Store = (*DBStore)(nil)
