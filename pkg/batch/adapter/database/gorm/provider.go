package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/tablesync/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory corresponding to the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("no dialector registered for database type: %s", dbType))
	}
	return factory, nil
}

// SortedParams renders params as key=value pairs in key order, joined by sep.
func SortedParams(params map[string]string, sep string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	return strings.Join(pairs, sep)
}

// Provider opens gorm-backed connections from the database section of the configuration.
// Every call to Connect opens a new pool, so no session is shared between callers.
type Provider struct {
	cfg *config.Config
}

// NewProvider creates a Provider.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{cfg: cfg}
}

// Resolve returns the settings for name. A name without an entry of its own uses the
// "defaults" entry with name as the database.
func (p *Provider) Resolve(name string) (dbconfig.DatabaseConfig, error) {
	var dbConfig dbconfig.DatabaseConfig
	raw, ok := p.cfg.Tablesync.AdaptorConfigs[name]
	fallback := false
	if !ok {
		raw, ok = p.cfg.Tablesync.AdaptorConfigs[dbconfig.DefaultsName]
		if !ok {
			return dbConfig, exception.NewInvalidConfiguration(moduleName,
				fmt.Sprintf("database configuration '%s' not found and no '%s' entry is configured", name, dbconfig.DefaultsName))
		}
		fallback = true
	}

	if err := configbinder.Bind(raw, &dbConfig); err != nil {
		return dbConfig, exception.NewInvalidConfiguration(moduleName,
			fmt.Sprintf("failed to decode database config for '%s': %v", name, err))
	}
	if fallback {
		dbConfig.Database = name
	}
	if dbConfig.Type == "" {
		return dbConfig, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("database '%s' has no type", name))
	}
	return dbConfig, nil
}

// Connect implements database.ConnectionProvider.
func (p *Provider) Connect(ctx context.Context, name string, isolation sql.IsolationLevel) (database.DBConnection, error) {
	conn, err := p.Open(ctx, name, isolation)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Open is Connect returning the concrete connection.
func (p *Provider) Open(ctx context.Context, name string, isolation sql.IsolationLevel) (*GormConnection, error) {
	dbConfig, err := p.Resolve(name)
	if err != nil {
		return nil, err
	}
	factory, err := GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(dbConfig)
	if err != nil {
		return nil, exception.NewInvalidConfiguration(moduleName,
			fmt.Sprintf("failed to create dialector for %s: %v", dbConfig.Type, err))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(time.Duration(dbConfig.SlowThresholdMs) * time.Millisecond),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, exception.NewConnectionError(moduleName, fmt.Sprintf("failed to open connection '%s'", name), err)
	}

	conn, err := NewGormConnection(db, dbConfig, name, effectiveIsolation(dbConfig.Type, isolation))
	if err != nil {
		return nil, err
	}
	applyPool(conn.SQLDB(), dbConfig.Pool)

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Debugf("Established DB connection: %s (%s)", name, dbConfig.Type)
	return conn, nil
}

// SQLite has no per-transaction isolation option; its transactions are already serializable.
func effectiveIsolation(dbType string, level sql.IsolationLevel) sql.IsolationLevel {
	if dbType == "sqlite" {
		return sql.LevelDefault
	}
	return level
}

func applyPool(sqlDB *sql.DB, pool dbconfig.PoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	if pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
}

var _ database.ConnectionProvider = (*Provider)(nil)
