package git

import (
	"context"
	"os/exec"
	"strings"
	"sync"
)

// MockCommandExecutor records every command it is given and answers from
// canned responses instead of running git.
type MockCommandExecutor struct {
	mu                  sync.Mutex
	Output              string
	Commands            []*exec.Cmd
	ExecuteWithOutputFn func(ctx context.Context, cmd *exec.Cmd) (string, error)
}

// Execute implements the CommandExecutor interface
func (m *MockCommandExecutor) Execute(ctx context.Context, cmd *exec.Cmd) error {
	_, err := m.ExecuteWithOutput(ctx, cmd)
	return err
}

// ExecuteWithOutput implements the CommandExecutor interface
func (m *MockCommandExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	m.mu.Unlock()

	if m.ExecuteWithOutputFn != nil {
		return m.ExecuteWithOutputFn(ctx, cmd)
	}

	return m.Output, nil
}

// Subcommands returns the git subcommand of each recorded invocation.
func (m *MockCommandExecutor) Subcommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.Commands))
	for _, cmd := range m.Commands {
		names = append(names, operationName(cmd.Args))
	}
	return names
}

// Find returns the first recorded command whose space-joined argv contains
// fragment.
func (m *MockCommandExecutor) Find(fragment string) *exec.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cmd := range m.Commands {
		if strings.Contains(strings.Join(cmd.Args, " "), fragment) {
			return cmd
		}
	}
	return nil
}

// NewMockCommandExecutor creates a new mock executor
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Commands: make([]*exec.Cmd, 0),
	}
}
