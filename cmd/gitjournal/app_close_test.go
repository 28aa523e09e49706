package main

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAppCloseScenarios tests various scenarios for the Close method
func TestAppCloseScenarios(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		modify        func(ta *testApp)
		errContains   []string
		validateState func(t *testing.T, ta *testApp)
	}{
		"NilLogger": {
			modify: func(ta *testApp) { ta.Logger = nil },
			validateState: func(t *testing.T, ta *testApp) {
				assert.True(t, ta.locker.ReleaseCalled)
			},
		},
		"NilLocker": {
			modify: func(ta *testApp) { ta.Locker = nil },
			validateState: func(t *testing.T, ta *testApp) {
				assert.True(t, ta.logger.CloseCalled, "logger should close even when locker is nil")
			},
		},
		"LoggerError": {
			modify:      func(ta *testApp) { ta.logger.CloseErr = errors.New("mock logger close error") },
			errContains: []string{"mock logger close error"},
		},
		"LockerError": {
			modify:      func(ta *testApp) { ta.locker.ReleaseErr = errors.New("mock locker release error") },
			errContains: []string{"mock locker release error"},
			validateState: func(t *testing.T, ta *testApp) {
				assert.True(t, ta.logger.CloseCalled)
				assert.Contains(t, ta.logger.Messages, "Failed to release lock during cleanup: %v")
			},
		},
		"BothErrors": {
			modify: func(ta *testApp) {
				ta.locker.ReleaseErr = errors.New("release failed")
				ta.logger.CloseErr = errors.New("close failed")
			},
			errContains: []string{"release failed", "close failed"},
		},
		"LockerErrorWithoutLogger": {
			modify: func(ta *testApp) {
				ta.Logger = nil
				ta.locker.ReleaseErr = errors.New("release failed")
			},
			errContains: []string{"release failed"},
			validateState: func(t *testing.T, ta *testApp) {
				assert.Contains(t, ta.stderr.String(), "Failed to release lock during cleanup")
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ta := newTestApp(t.TempDir())
			tc.modify(ta)

			err := ta.Close()
			if len(tc.errContains) > 0 {
				require.Error(t, err)
				for _, want := range tc.errContains {
					assert.Contains(t, err.Error(), want)
				}
			} else {
				require.NoError(t, err)
			}

			if tc.validateState != nil {
				tc.validateState(t, ta)
			}
		})
	}
}

func TestAppCloseRunsOnce(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t.TempDir())
	ta.locker.ReleaseErr = errors.New("release failed")
	ta.ran.Store(true)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = ta.Close()
		}()
	}
	wg.Wait()

	// The signal path may race the main goroutine's own cleanup.
	ta.CleanupOnSignal()
	ta.PrintSummary()

	assert.Equal(t, int32(1), ta.locker.ReleaseCount.Load())
	assert.Equal(t, int32(1), ta.logger.CloseCount.Load())
	for _, err := range errs {
		require.Error(t, err)
		assert.Contains(t, err.Error(), "release failed")
	}

	summaries := 0
	for _, message := range ta.logger.Messages {
		if message == "✅ Journal commits made: %d" {
			summaries++
		}
	}
	assert.Equal(t, 1, summaries)
}
