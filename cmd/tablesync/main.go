package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tigerroll/tablesync/internal/app"
	"github.com/tigerroll/tablesync/pkg/batch/core/job/transfer"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

// embeddedConfig is the default configuration, overridden by --config, .env and the environment.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// Exit codes.
const (
	exitOK            = 0
	exitTransferError = 1
	exitUsageError    = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tablesync: %v\n", err)
	}
	stop()
	os.Exit(code)
}

func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage), errors.Is(err, exception.ErrInvalidConfiguration):
		return exitUsageError
	default:
		return exitTransferError
	}
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newRootCommand() *cobra.Command {
	opts := app.Options{EmbeddedConfig: embeddedConfig}

	root := &cobra.Command{
		Use:           "tablesync",
		Short:         "Copy and incrementally sync relational tables between databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML file merged over the built-in configuration")
	flags.StringVar(&opts.EnvFile, "env-file", os.Getenv("ENV_FILE_PATH"), ".env file to load (default .env)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	flags.StringVar(&opts.Source, "source", "", "source database name")
	flags.StringVar(&opts.Target, "target", "", "target database name")
	flags.IntVarP(&opts.WorkerCount, "workers", "w", 0, "workers per table (default from batch.worker_count)")

	root.AddCommand(
		transferCommand("copy", "Clear every target table and copy it from the source", &opts,
			func(ctx context.Context, o *transfer.Orchestrator, req transfer.Request) error {
				return o.TransferAll(ctx, req)
			}),
		transferCommand("sync", "Insert and update rows changed since the last watermark", &opts,
			func(ctx context.Context, o *transfer.Orchestrator, req transfer.Request) error {
				return o.TransferUpdates(ctx, req)
			}),
	)
	return root
}

func transferCommand(use, short string, opts *app.Options, op app.Operation) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.WorkerCount < 0 {
				return &usageError{err: fmt.Errorf("--workers must be positive, got %d", opts.WorkerCount)}
			}
			err := app.Run(cmd.Context(), *opts, op)
			if err != nil {
				logger.Errorf("%s failed: %v", use, err)
				return err
			}
			logger.Infof("%s completed successfully.", use)
			return nil
		},
	}
}
