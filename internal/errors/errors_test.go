package errors

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	originalErr := New("original error")
	wrappedErr := Wrap(originalErr, "wrapped message")

	assert.True(t, Is(wrappedErr, originalErr))
	assert.Equal(t, "wrapped message: original error", wrappedErr.Error())
}

func TestWrapf(t *testing.T) {
	originalErr := New("original error")
	wrappedErr := Wrapf(originalErr, "wrapped message with %s", "format")

	assert.True(t, Is(wrappedErr, originalErr))
	assert.Equal(t, "wrapped message with format: original error", wrappedErr.Error())
}

func TestGitError(t *testing.T) {
	err := errors.New("command failed")
	gitErr := NewGitError("commit-tree", []string{"abc123"}, err, "fatal: bad tree\n")

	assert.Equal(t, "git commit-tree failed: fatal: bad tree: command failed", gitErr.Error())
	assert.True(t, errors.Is(gitErr, err))

	wrapped := NewGitError("add", nil, Wrap(ErrGitOperationFailed, "exit status 128"), "")
	assert.True(t, Is(wrapped, ErrGitOperationFailed))
}

func TestLockError(t *testing.T) {
	err := errors.New("file not found")
	lockErr := NewLockError("/tmp/lock.file", 1234, err)
	assert.Equal(t, "lock error with file /tmp/lock.file (PID: 1234): file not found", lockErr.Error())

	lockErr = NewLockError("/tmp/lock.file", 0, err)
	assert.Equal(t, "lock error with file /tmp/lock.file: file not found", lockErr.Error())
	assert.True(t, errors.Is(lockErr, err))
}

func TestConfigError(t *testing.T) {
	err := errors.New("invalid value")
	configErr := NewConfigError("interval", 0, err)
	assert.Equal(t, "configuration error for interval = 0: invalid value", configErr.Error())

	configErr = NewConfigError("repo", nil, err)
	assert.Equal(t, "configuration error for repo: invalid value", configErr.Error())
	assert.True(t, errors.Is(configErr, err))
}

func TestValidationError(t *testing.T) {
	tests := map[string]struct {
		cause       error
		wantMessage string
	}{
		"WithoutCause": {
			cause:       nil,
			wantMessage: "Invalid JSON payload: invalid event",
		},
		"WithCause": {
			cause:       errors.New("unexpected EOF"),
			wantMessage: "Invalid JSON payload: invalid event\nunexpected EOF",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := NewValidationError("Invalid JSON payload", test.cause)
			assert.Equal(t, test.wantMessage, err.Error())
			assert.True(t, Is(err, ErrInvalidEvent))
			if test.cause != nil {
				assert.True(t, Is(err, test.cause))
			}

			var vErr *ValidationError
			require.True(t, As(err, &vErr))
			assert.Equal(t, "Invalid JSON payload", vErr.Message)
		})
	}
}

func TestBindError(t *testing.T) {
	err := NewBindError(3000, 3099, Wrap(ErrPortExhausted, "tried 100 ports"))
	assert.Equal(t, "could not bind any port in 3000-3099: tried 100 ports: no available port", err.Error())
	assert.True(t, Is(err, ErrPortExhausted))

	single := NewBindError(8080, 8080, syscall.EACCES)
	assert.Equal(t, "could not bind port 8080: permission denied", single.Error())
	assert.True(t, Is(single, syscall.EACCES))
}

func TestJoin(t *testing.T) {
	first := New("first")
	second := New("second")

	joined := Join(first, second)
	assert.True(t, Is(joined, first))
	assert.True(t, Is(joined, second))
	assert.Nil(t, Join())
}
