package partition

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

// RetryDecider is asked between saga rounds whether the failed partitions should run again.
// It is only consulted when failures exist and rounds remain.
type RetryDecider interface {
	ShouldRetry(ctx context.Context, table string, failed []int) bool
}

// RetryDeciderFunc adapts a function to RetryDecider.
type RetryDeciderFunc func(ctx context.Context, table string, failed []int) bool

// ShouldRetry implements RetryDecider.
func (f RetryDeciderFunc) ShouldRetry(ctx context.Context, table string, failed []int) bool {
	return f(ctx, table, failed)
}

// AlwaysRetry retries until the saga runs out of rounds.
var AlwaysRetry RetryDecider = RetryDeciderFunc(func(context.Context, string, []int) bool { return true })

// NeverRetry stops the saga after the first round with failures.
var NeverRetry RetryDecider = RetryDeciderFunc(func(context.Context, string, []int) bool { return false })

// PromptDecider asks an operator. It reads answers line by line from In until it gets
// y/yes or n/no; end of input or a canceled context counts as no.
type PromptDecider struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// NewPromptDecider creates a PromptDecider.
func NewPromptDecider(in io.Reader, out io.Writer) *PromptDecider {
	return &PromptDecider{In: in, Out: out, scanner: bufio.NewScanner(in)}
}

// ShouldRetry implements RetryDecider.
func (d *PromptDecider) ShouldRetry(ctx context.Context, table string, failed []int) bool {
	if d.scanner == nil {
		d.scanner = bufio.NewScanner(d.In)
	}
	for ctx.Err() == nil {
		fmt.Fprintf(d.Out, "\nThe following workers failed: %v\nfor table %s\nDo you want to retry these workers? (y/n): ", failed, table)
		if !d.scanner.Scan() {
			fmt.Fprintln(d.Out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(d.scanner.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Fprintln(d.Out, "Please enter 'y' or 'n'")
		}
	}
	return false
}

// NewRetryDecider returns the decider named by saga.retry_decision. in and out are only
// used by the prompt decider.
func NewRetryDecider(decision string, in io.Reader, out io.Writer) (RetryDecider, error) {
	switch strings.ToLower(decision) {
	case "", config.RetryDecisionAlways:
		return AlwaysRetry, nil
	case config.RetryDecisionNever:
		return NeverRetry, nil
	case config.RetryDecisionPrompt:
		return NewPromptDecider(in, out), nil
	default:
		return nil, exception.NewInvalidConfiguration(moduleName, fmt.Sprintf("unknown retry decision %q", decision))
	}
}
