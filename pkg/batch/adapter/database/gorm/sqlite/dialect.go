// Package sqlite registers the SQLite dialector with the gorm adapter.
package sqlite

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/tablesync/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, exception.NewInvalidConfiguration("sqlite", "SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the database file path with any driver parameters as a query string.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if len(c.Params) == 0 {
		return c.Database
	}
	return c.Database + "?" + gormadapter.SortedParams(c.Params, "&")
}
