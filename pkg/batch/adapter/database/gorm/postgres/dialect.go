// Package postgres registers the PostgreSQL dialector with the gorm adapter.
package postgres

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/tablesync/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the keyword/value DSN expected by pgx.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s", c.Host, c.Port, c.User, c.Password, c.Database),
	}
	if c.Sslmode != "" {
		parts = append(parts, "sslmode="+c.Sslmode)
	}
	if c.Schema != "" {
		parts = append(parts, "search_path="+c.Schema)
	}
	if len(c.Params) > 0 {
		parts = append(parts, gormadapter.SortedParams(c.Params, " "))
	}
	return strings.Join(parts, " ")
}
