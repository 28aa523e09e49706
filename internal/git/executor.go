package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bashhack/gitjournal/internal/errors"
)

// CommandExecutor defines an interface for executing commands
type CommandExecutor interface {
	// Execute runs a command and reports whether it succeeded
	Execute(ctx context.Context, cmd *exec.Cmd) error

	// ExecuteWithOutput runs a command and returns its stdout
	ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// Execute implements CommandExecutor.Execute
func (e *ExecExecutor) Execute(ctx context.Context, cmd *exec.Cmd) error {
	_, err := e.ExecuteWithOutput(ctx, cmd)
	return err
}

// ExecuteWithOutput implements CommandExecutor.ExecuteWithOutput.
// Failures come back as a *errors.GitError carrying stderr and wrapping both
// errors.ErrGitOperationFailed and the underlying *exec.ExitError.
func (e *ExecExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		wrappedErr := fmt.Errorf("%w: %w", errors.ErrGitOperationFailed, err)
		return "", errors.NewGitError(operationName(cmd.Args), commandArgs(cmd.Args), wrappedErr, stderr.String())
	}

	return stdout.String(), nil
}

// operationName picks the git subcommand out of an argv, skipping the
// executable and global options such as "-C <dir>".
func operationName(argv []string) string {
	for i := 1; i < len(argv); i++ {
		arg := argv[i]
		if arg == "-C" || arg == "-c" {
			i++
			continue
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg
	}
	if len(argv) > 0 {
		return argv[0]
	}
	return ""
}

// commandArgs returns the arguments following the executable.
func commandArgs(argv []string) []string {
	if len(argv) > 1 {
		return argv[1:]
	}
	return nil
}
