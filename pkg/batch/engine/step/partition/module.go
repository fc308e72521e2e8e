package partition

import (
	"os"

	"go.uber.org/fx"

	config "github.com/tigerroll/tablesync/pkg/batch/core/config"
)

// Module provides the RetryDecider selected by batch.saga.retry_decision. The prompt
// decider reads answers from stdin and writes questions to stdout.
var Module = fx.Options(
	fx.Provide(NewConfiguredRetryDecider),
)

// NewConfiguredRetryDecider returns the decider named by cfg.Saga.RetryDecision.
func NewConfiguredRetryDecider(cfg *config.BatchConfig) (RetryDecider, error) {
	return NewRetryDecider(cfg.Saga.RetryDecision, os.Stdin, os.Stdout)
}
