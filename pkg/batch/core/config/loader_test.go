package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

const embeddedYAML = `
tablesync:
  batch:
    worker_count: 8
    saga:
      retry_decision: never
  tables:
    - name: users
    - name: orders
      primary_key: order_id
  database:
    source:
      type: postgres
      host: ${TEST_SOURCE_HOST}
      port: 5432
      database: shop
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(config.LoadOptions{})
	require.NoError(t, err)

	c := cfg.Tablesync
	assert.Equal(t, 4, c.Batch.WorkerCount)
	assert.Equal(t, 5000, c.Batch.BatchSize)
	assert.Equal(t, 3, c.Batch.Retry.MaxAttempts)
	assert.Equal(t, 5000, c.Batch.Retry.IntervalMs)
	assert.Equal(t, 3, c.Batch.Saga.MaxAttempts)
	assert.Equal(t, config.RetryDecisionAlways, c.Batch.Saga.RetryDecision)
	assert.Equal(t, config.WatermarkStoreFile, c.Watermark.Store)
	assert.Equal(t, "last_sync.txt", c.Watermark.Path)

	names := make([]string, 0, len(c.Tables))
	for _, tbl := range c.Tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"users", "products", "recommendations"}, names)
}

func TestLoadConfig_EmbeddedYAMLAndExpansion(t *testing.T) {
	t.Setenv("TEST_SOURCE_HOST", "db.internal")

	cfg, err := config.LoadConfig(config.LoadOptions{EmbeddedConfig: config.EmbeddedConfig(embeddedYAML)})
	require.NoError(t, err)

	c := cfg.Tablesync
	assert.Equal(t, 8, c.Batch.WorkerCount)
	assert.Equal(t, 5000, c.Batch.BatchSize, "unset values keep their defaults")
	assert.Equal(t, config.RetryDecisionNever, c.Batch.Saga.RetryDecision)

	tables := c.TableConfigs()
	require.Len(t, tables, 2)
	assert.Equal(t, "id", tables[0].PrimaryKey)
	assert.Equal(t, "order_id", tables[1].PrimaryKey)
	assert.Equal(t, "created_at", tables[1].CreatedAtColumn)

	source, ok := c.AdaptorConfigs["source"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "db.internal", source["host"])
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TABLESYNC_BATCH_WORKER_COUNT", "2")
	t.Setenv("TABLESYNC_BATCH_RETRY_INTERVAL_MS", "10")
	t.Setenv("TABLESYNC_DATABASE_SOURCE_PASSWORD", "s3cret")
	t.Setenv("TEST_SOURCE_HOST", "db.internal")

	cfg, err := config.LoadConfig(config.LoadOptions{EmbeddedConfig: config.EmbeddedConfig(embeddedYAML)})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Tablesync.Batch.WorkerCount)
	assert.Equal(t, 10, cfg.Tablesync.Batch.Retry.IntervalMs)
	source := cfg.Tablesync.AdaptorConfigs["source"].(map[string]interface{})
	assert.Equal(t, "s3cret", source["password"])
	assert.Equal(t, "postgres", source["type"])
}

func TestLoadConfig_ExternalFileOverridesEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tablesync:\n  batch:\n    batch_size: 100\n  watermark:\n    path: /tmp/wm.txt\n"), 0o600))

	cfg, err := config.LoadConfig(config.LoadOptions{EmbeddedConfig: config.EmbeddedConfig(embeddedYAML), ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Tablesync.Batch.BatchSize)
	assert.Equal(t, 8, cfg.Tablesync.Batch.WorkerCount)
	assert.Equal(t, "/tmp/wm.txt", cfg.Tablesync.Watermark.Path)
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	cases := map[string]func(c *config.Config){
		"zero workers":        func(c *config.Config) { c.Tablesync.Batch.WorkerCount = 0 },
		"negative batch size": func(c *config.Config) { c.Tablesync.Batch.BatchSize = -1 },
		"unknown decision":    func(c *config.Config) { c.Tablesync.Batch.Saga.RetryDecision = "maybe" },
		"bad table name":      func(c *config.Config) { c.Tablesync.Tables = []config.TableConfig{{Name: "users; drop table x"}} },
		"db store without ref": func(c *config.Config) {
			c.Tablesync.Watermark.Store = config.WatermarkStoreDatabase
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.NewConfig()
			mutate(cfg)
			err := config.Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
		})
	}
}

func TestOsEnvironmentExpander(t *testing.T) {
	t.Setenv("TEST_EXPANDER_VALUE", "hello")
	out, err := config.NewOsEnvironmentExpander().Expand([]byte("a: ${TEST_EXPANDER_VALUE}, b: $$literal"))
	require.NoError(t, err)
	assert.Equal(t, "a: hello, b: $literal", string(out))
}
