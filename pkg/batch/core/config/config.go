package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// Retry decisions consulted by the saga coordinator between rounds.
const (
	RetryDecisionAlways = "always"
	RetryDecisionNever  = "never"
	RetryDecisionPrompt = "prompt"
)

// Watermark store kinds.
const (
	WatermarkStoreFile     = "file"
	WatermarkStoreDatabase = "database"
)

// Metric recorder kinds.
const (
	MetricsRecorderNoop       = "noop"
	MetricsRecorderPrometheus = "prometheus"
	MetricsRecorderOtel       = "otel"
)

// RetryConfig holds the worker-level retry settings.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"` // MaxAttempts is the number of additional attempts after the first failure.
	IntervalMs  int `yaml:"interval_ms"`  // IntervalMs is the fixed delay before each retry, in milliseconds.
}

// SagaConfig holds the per-table saga settings.
type SagaConfig struct {
	MaxAttempts   int    `yaml:"max_attempts"`   // MaxAttempts is the number of rounds, including the first.
	RetryDecision string `yaml:"retry_decision"` // RetryDecision is one of "always", "never", "prompt".
}

// BatchConfig holds the transfer engine settings.
type BatchConfig struct {
	WorkerCount int         `yaml:"worker_count"`
	BatchSize   int         `yaml:"batch_size"`
	Retry       RetryConfig `yaml:"retry"`
	Saga        SagaConfig  `yaml:"saga"`
}

// TableConfig describes one replicated table.
type TableConfig struct {
	Name            string `yaml:"name"`
	PrimaryKey      string `yaml:"primary_key"`
	CreatedAtColumn string `yaml:"created_at_column"`
	UpdatedAtColumn string `yaml:"updated_at_column"`
}

// WatermarkConfig selects where the sync watermark is persisted.
type WatermarkConfig struct {
	Store string `yaml:"store"`  // Store is "file" or "database".
	Path  string `yaml:"path"`   // Path is the watermark file for the file store.
	DBRef string `yaml:"db_ref"` // DBRef names the database holding the watermark table.
	Key   string `yaml:"key"`    // Key distinguishes watermarks of different source/target pairs.
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// SystemConfig holds system-level settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// MetricsConfig selects the metric recorder.
type MetricsConfig struct {
	Recorder     string `yaml:"recorder"`      // Recorder is "noop", "prometheus" or "otel".
	TextfilePath string `yaml:"textfile_path"` // TextfilePath receives a Prometheus text dump after each run.
	OTLPEndpoint string `yaml:"otlp_endpoint"` // OTLPEndpoint is the OTLP/HTTP metrics endpoint (host:port).
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Insecure     bool   `yaml:"insecure"`
}

// InfrastructureConfig names the databases a run reads from and writes to.
type InfrastructureConfig struct {
	SourceDBRef string `yaml:"source_db_ref"`
	TargetDBRef string `yaml:"target_db_ref"`
}

// TablesyncConfig is the root of the application settings.
type TablesyncConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	Tables         []TableConfig        `yaml:"tables"`
	Watermark      WatermarkConfig      `yaml:"watermark"`
	System         SystemConfig         `yaml:"system"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// AdaptorConfigs holds named database connection settings, decoded by the database adapter.
	AdaptorConfigs map[string]interface{} `yaml:"database"`
}

// Config is the top-level configuration document.
type Config struct {
	Tablesync TablesyncConfig `yaml:"tablesync"`
}

// DefaultTables is the replicated table set, in transfer order.
var DefaultTables = []string{"users", "products", "recommendations"}

// NewConfig returns a Config populated with default values.
func NewConfig() *Config {
	tables := make([]TableConfig, 0, len(DefaultTables))
	for _, name := range DefaultTables {
		tables = append(tables, TableConfig{Name: name})
	}
	cfg := &Config{
		Tablesync: TablesyncConfig{
			Batch: BatchConfig{
				WorkerCount: 4,
				BatchSize:   5000,
				Retry: RetryConfig{
					MaxAttempts: 3,
					IntervalMs:  5000,
				},
				Saga: SagaConfig{
					MaxAttempts:   3,
					RetryDecision: RetryDecisionAlways,
				},
			},
			Tables: tables,
			Watermark: WatermarkConfig{
				Store: WatermarkStoreFile,
				Path:  "last_sync.txt",
				Key:   "default",
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Metrics: MetricsConfig{Recorder: MetricsRecorderNoop},
			Tracing: TracingConfig{ServiceName: "tablesync"},
		},
	}
	cfg.Tablesync.AdaptorConfigs = map[string]interface{}{}
	return cfg
}

// TableConfigs returns the configured tables with column defaults applied.
func (c *TablesyncConfig) TableConfigs() []TableConfig {
	out := make([]TableConfig, 0, len(c.Tables))
	for _, t := range c.Tables {
		if t.PrimaryKey == "" {
			t.PrimaryKey = "id"
		}
		if t.CreatedAtColumn == "" {
			t.CreatedAtColumn = "created_at"
		}
		if t.UpdatedAtColumn == "" {
			t.UpdatedAtColumn = "updated_at"
		}
		out = append(out, t)
	}
	return out
}
