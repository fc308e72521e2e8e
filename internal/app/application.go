// Package app assembles the tablesync fx application and runs one transfer with it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/tablesync/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/core/job/transfer"
	"github.com/tigerroll/tablesync/pkg/batch/engine/step/partition"
	metrics "github.com/tigerroll/tablesync/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/tablesync/pkg/batch/infrastructure/watermark"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const moduleName = "app"

// Options carries the command-line settings of one invocation. Empty fields keep the
// configured values.
type Options struct {
	EmbeddedConfig config.EmbeddedConfig
	ConfigFile     string
	EnvFile        string
	LogLevel       string
	Source         string
	Target         string
	WorkerCount    int
}

// Operation is the transfer run once the application has started.
type Operation func(ctx context.Context, o *transfer.Orchestrator, req transfer.Request) error

// Modules returns the fx options shared by every command.
func Modules(cfg *config.Config) fx.Option {
	return fx.Options(
		logger.Module,
		fx.Supply(cfg),
		config.Module,
		gormadapter.Module,
		metrics.Module,
		watermark.Module,
		partition.Module,
		transfer.Module,
	)
}

// Run loads the configuration, starts the application, runs op and stops the application.
// Configuration problems are returned wrapped in exception.ErrInvalidConfiguration.
func Run(ctx context.Context, opts Options, op Operation) error {
	cfg, err := config.LoadConfig(config.LoadOptions{
		EnvFilePath:    opts.EnvFile,
		EmbeddedConfig: opts.EmbeddedConfig,
		ConfigFile:     opts.ConfigFile,
	})
	if err != nil {
		return invalidConfiguration(err)
	}
	applyOverrides(cfg, opts)

	logging := cfg.Tablesync.System.Logging
	closer := logger.Configure(logger.Options{
		Level:      logging.Level,
		File:       logging.File,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
	})
	defer closer.Close()

	req := transfer.Request{
		Source:      cfg.Tablesync.Infrastructure.SourceDBRef,
		Target:      cfg.Tablesync.Infrastructure.TargetDBRef,
		WorkerCount: cfg.Tablesync.Batch.WorkerCount,
	}
	if req.Source == "" || req.Target == "" {
		return exception.NewInvalidConfiguration(moduleName, "both --source and --target are required")
	}

	var orchestrator *transfer.Orchestrator
	application := fx.New(Modules(cfg), fx.Populate(&orchestrator))
	if err := application.Err(); err != nil {
		return invalidConfiguration(err)
	}

	startCtx, cancel := context.WithTimeout(ctx, application.StartTimeout())
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	tables := lo.Map(orchestrator.Tables(), func(t config.TableConfig, _ int) string { return t.Name })
	logger.Infof("Tables %v, source %s, target %s, %d workers.", tables, req.Source, req.Target, req.WorkerCount)
	runErr := op(ctx, orchestrator, req)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), application.StopTimeout())
	defer cancelStop()
	if err := application.Stop(stopCtx); err != nil {
		logger.Warnf("Application did not stop cleanly: %v", err)
	}
	return runErr
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.LogLevel != "" {
		cfg.Tablesync.System.Logging.Level = opts.LogLevel
	}
	if opts.Source != "" {
		cfg.Tablesync.Infrastructure.SourceDBRef = opts.Source
	}
	if opts.Target != "" {
		cfg.Tablesync.Infrastructure.TargetDBRef = opts.Target
	}
	if opts.WorkerCount != 0 {
		cfg.Tablesync.Batch.WorkerCount = opts.WorkerCount
	}
}

func invalidConfiguration(err error) error {
	if errors.Is(err, exception.ErrInvalidConfiguration) {
		return err
	}
	return exception.NewBatchError(moduleName, "invalid configuration", errors.Join(exception.ErrInvalidConfiguration, err), false, false)
}
