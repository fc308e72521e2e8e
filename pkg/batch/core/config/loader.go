package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

// Package config loads settings from embedded YAML, an optional external YAML file,
// a .env file and environment variables, in that order of increasing precedence.

const moduleName = "config"

// databaseEnvPrefix is the prefix of per-database overrides, e.g. TABLESYNC_DATABASE_SOURCE_HOST.
const databaseEnvPrefix = "TABLESYNC_DATABASE_"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadOptions controls where LoadConfig reads from.
type LoadOptions struct {
	EnvFilePath    string
	EmbeddedConfig EmbeddedConfig
	// ConfigFile is an optional YAML file merged over the embedded configuration.
	ConfigFile string
	// Expander replaces ${VAR} placeholders before parsing. Defaults to OsEnvironmentExpander.
	Expander EnvironmentExpander
}

// LoadConfig loads configuration from the embedded document, an optional file and
// the environment, then validates it.
// This function is expected to be called only once during application startup.
func LoadConfig(opts LoadOptions) (*Config, error) {
	if opts.EnvFilePath != "" {
		if err := godotenv.Load(opts.EnvFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", opts.EnvFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	expander := opts.Expander
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	documents := [][]byte{opts.EmbeddedConfig}
	if opts.ConfigFile != "" {
		data, err := os.ReadFile(opts.ConfigFile)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to read config file %s", opts.ConfigFile), err, false, false)
		}
		documents = append(documents, data)
	}

	for _, doc := range documents {
		if len(doc) == 0 {
			continue
		}
		expanded, err := expander.Expand(doc)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
		}
		var yamlConfig Config
		if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to unmarshal config", err, false, false)
		}
		mergeConfig(cfg, &yamlConfig)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	loadAdaptorConfigsFromEnv(cfg.Tablesync.AdaptorConfigs, databaseEnvPrefix)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that can never produce a successful run.
func Validate(cfg *Config) error {
	c := cfg.Tablesync
	if c.Batch.WorkerCount <= 0 {
		return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("batch.worker_count must be positive, got %d", c.Batch.WorkerCount))
	}
	if c.Batch.BatchSize <= 0 {
		return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("batch.batch_size must be positive, got %d", c.Batch.BatchSize))
	}
	if c.Batch.Retry.MaxAttempts < 0 || c.Batch.Retry.IntervalMs < 0 {
		return exception.NewInvalidConfiguration(moduleName, "batch.retry values must not be negative")
	}
	if c.Batch.Saga.MaxAttempts <= 0 {
		return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("batch.saga.max_attempts must be positive, got %d", c.Batch.Saga.MaxAttempts))
	}
	switch c.Batch.Saga.RetryDecision {
	case RetryDecisionAlways, RetryDecisionNever, RetryDecisionPrompt:
	default:
		return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unknown batch.saga.retry_decision %q", c.Batch.Saga.RetryDecision))
	}
	if len(c.Tables) == 0 {
		return exception.NewInvalidConfiguration(moduleName, "at least one table must be configured")
	}
	for _, t := range c.TableConfigs() {
		for _, ident := range []string{t.Name, t.PrimaryKey, t.CreatedAtColumn, t.UpdatedAtColumn} {
			if !tableNamePattern.MatchString(ident) {
				return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("invalid identifier %q in table %q", ident, t.Name))
			}
		}
	}
	switch c.Watermark.Store {
	case WatermarkStoreFile:
		if c.Watermark.Path == "" {
			return exception.NewInvalidConfiguration(moduleName, "watermark.path is required for the file store")
		}
	case WatermarkStoreDatabase:
		if c.Watermark.DBRef == "" {
			return exception.NewInvalidConfiguration(moduleName, "watermark.db_ref is required for the database store")
		}
	default:
		return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unknown watermark.store %q", c.Watermark.Store))
	}
	switch c.Metrics.Recorder {
	case MetricsRecorderNoop, MetricsRecorderPrometheus, MetricsRecorderOtel:
	default:
		return exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unknown metrics.recorder %q", c.Metrics.Recorder))
	}
	return nil
}

// mergeConfig performs a deep merge from source into dest.
// Values in source overwrite dest only when they are not zero values.
func mergeConfig(dest, source *Config) {
	d, s := &dest.Tablesync, &source.Tablesync

	if s.Batch.WorkerCount != 0 {
		d.Batch.WorkerCount = s.Batch.WorkerCount
	}
	if s.Batch.BatchSize != 0 {
		d.Batch.BatchSize = s.Batch.BatchSize
	}
	if s.Batch.Retry.MaxAttempts != 0 {
		d.Batch.Retry.MaxAttempts = s.Batch.Retry.MaxAttempts
	}
	if s.Batch.Retry.IntervalMs != 0 {
		d.Batch.Retry.IntervalMs = s.Batch.Retry.IntervalMs
	}
	if s.Batch.Saga.MaxAttempts != 0 {
		d.Batch.Saga.MaxAttempts = s.Batch.Saga.MaxAttempts
	}
	if s.Batch.Saga.RetryDecision != "" {
		d.Batch.Saga.RetryDecision = s.Batch.Saga.RetryDecision
	}

	if len(s.Tables) > 0 {
		d.Tables = s.Tables
	}

	mergeString(&d.Watermark.Store, s.Watermark.Store)
	mergeString(&d.Watermark.Path, s.Watermark.Path)
	mergeString(&d.Watermark.DBRef, s.Watermark.DBRef)
	mergeString(&d.Watermark.Key, s.Watermark.Key)

	mergeString(&d.System.Timezone, s.System.Timezone)
	mergeString(&d.System.Logging.Level, s.System.Logging.Level)
	mergeString(&d.System.Logging.File, s.System.Logging.File)
	if s.System.Logging.MaxSizeMB != 0 {
		d.System.Logging.MaxSizeMB = s.System.Logging.MaxSizeMB
	}
	if s.System.Logging.MaxBackups != 0 {
		d.System.Logging.MaxBackups = s.System.Logging.MaxBackups
	}

	mergeString(&d.Metrics.Recorder, s.Metrics.Recorder)
	mergeString(&d.Metrics.TextfilePath, s.Metrics.TextfilePath)
	mergeString(&d.Metrics.OTLPEndpoint, s.Metrics.OTLPEndpoint)

	if s.Tracing.Enabled {
		d.Tracing.Enabled = true
	}
	if s.Tracing.Insecure {
		d.Tracing.Insecure = true
	}
	mergeString(&d.Tracing.OTLPEndpoint, s.Tracing.OTLPEndpoint)
	mergeString(&d.Tracing.ServiceName, s.Tracing.ServiceName)

	mergeString(&d.Infrastructure.SourceDBRef, s.Infrastructure.SourceDBRef)
	mergeString(&d.Infrastructure.TargetDBRef, s.Infrastructure.TargetDBRef)

	if s.AdaptorConfigs != nil {
		if d.AdaptorConfigs == nil {
			d.AdaptorConfigs = make(map[string]interface{})
		}
		for key, value := range s.AdaptorConfigs {
			d.AdaptorConfigs[key] = value
		}
	}
}

func mergeString(dest *string, source string) {
	if source != "" {
		*dest = source
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// The variable name is the upper-cased chain of yaml tags joined by underscores,
// e.g. TABLESYNC_BATCH_WORKER_COUNT.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadAdaptorConfigsFromEnv applies overrides such as TABLESYNC_DATABASE_SOURCE_HOST=db1
// to the named entry ("source") of the untyped database map.
func loadAdaptorConfigsFromEnv(adaptors map[string]interface{}, prefix string) {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := strings.SplitN(parts[0], "_", 2)
		if len(keyAndField) != 2 || keyAndField[0] == "" || keyAndField[1] == "" {
			continue
		}
		name := strings.ToLower(keyAndField[0])
		fieldName := strings.ToLower(keyAndField[1])

		entry, ok := adaptors[name].(map[string]interface{})
		if !ok {
			entry = map[string]interface{}{}
		}
		entry[fieldName] = parts[1]
		adaptors[name] = entry
	}
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
