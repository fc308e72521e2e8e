package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string            `yaml:"type"`             // Database type ("postgres", "mysql", "sqlite").
	Host     string            `yaml:"host"`             // Database host address.
	Port     int               `yaml:"port"`             // Database port number.
	Database string            `yaml:"database"`         // Database name, or file path for SQLite.
	User     string            `yaml:"user"`             // Database user.
	Password string            `yaml:"password"`         // Database password.
	Schema   string            `yaml:"schema,omitempty"` // Schema name for PostgreSQL (search_path).
	Sslmode  string            `yaml:"sslmode"`          // SSL mode for the connection.
	Params   map[string]string `yaml:"params"`           // Extra driver parameters appended to the DSN.
	Pool     PoolConfig        `yaml:"pool"`             // Connection pool settings.
	// SlowThresholdMs is the duration after which gorm logs a statement as slow.
	SlowThresholdMs int `yaml:"slow_threshold_ms"`
}

// DefaultsName is the entry used for database names that have no entry of their own.
// The requested name becomes the database name on the default server.
const DefaultsName = "defaults"
