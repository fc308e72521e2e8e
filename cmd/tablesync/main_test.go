package main

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitUsageError, exitCode(&usageError{err: errors.New("bad flag")}))
	assert.Equal(t, exitUsageError, exitCode(exception.NewInvalidConfiguration("test", "no target")))
	assert.Equal(t, exitTransferError, exitCode(exception.NewSagaExhausted("test", "workers [1] failed")))
	assert.Equal(t, exitTransferError, exitCode(exception.NewValidationMismatch("test", "hash differs")))
}

func execute(args ...string) error {
	root := newRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root.Execute()
}

func TestRootCommand_UsageErrors(t *testing.T) {
	err := execute("copy", "--workers", "many")
	require.Error(t, err)
	assert.Equal(t, exitUsageError, exitCode(err))

	err = execute("sync", "--workers=-2")
	require.Error(t, err)
	assert.Equal(t, exitUsageError, exitCode(err))

	err = execute("copy", "extra")
	require.Error(t, err)
}

func TestRootCommand_HasTransferCommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"copy", "sync"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("source"))
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}
