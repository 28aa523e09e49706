package main

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bashhack/gitjournal/internal/config"
	"github.com/bashhack/gitjournal/internal/git"
	"github.com/bashhack/gitjournal/internal/journal"
	"github.com/bashhack/gitjournal/internal/watcher"
)

// recorder keeps the order in which components were driven.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) Steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

// syncBuffer is a bytes.Buffer safe for the daemon's goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type MockLocker struct {
	AcquireErr    error
	ReleaseErr    error
	AcquireCalled bool
	ReleaseCalled bool
	ReleaseCount  atomic.Int32
}

func (m *MockLocker) Acquire() error {
	m.AcquireCalled = true
	return m.AcquireErr
}

func (m *MockLocker) Release() error {
	m.ReleaseCount.Add(1)
	m.ReleaseCalled = true
	return m.ReleaseErr
}

type MockLogger struct {
	mu          sync.Mutex
	Messages    []string
	CloseCalled bool
	CloseCount  atomic.Int32
	CloseErr    error
}

func (m *MockLogger) record(format string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, format)
}

func (m *MockLogger) Info(format string, args ...interface{})          { m.record(format) }
func (m *MockLogger) Warning(format string, args ...interface{})       { m.record(format) }
func (m *MockLogger) Error(format string, args ...interface{})         { m.record(format) }
func (m *MockLogger) InfoToUser(format string, args ...interface{})    { m.record(format) }
func (m *MockLogger) WarningToUser(format string, args ...interface{}) { m.record(format) }
func (m *MockLogger) Success(format string, args ...interface{})       { m.record(format) }
func (m *MockLogger) StatusMessage(format string, args ...interface{}) { m.record(format) }

func (m *MockLogger) Close() error {
	m.CloseCount.Add(1)
	m.CloseCalled = true
	return m.CloseErr
}

type MockStore struct {
	Entries []git.Entry
	LogErr  error
}

func (m *MockStore) Stage(ctx context.Context, paths []string) (int, error) {
	return len(paths), nil
}

func (m *MockStore) Commit(ctx context.Context, message string, when time.Time) (string, error) {
	return "sha1", nil
}

func (m *MockStore) AddNote(ctx context.Context, sha string, payload []byte) error { return nil }

func (m *MockStore) GitDir(ctx context.Context) (string, error) { return "", nil }

func (m *MockStore) Log(ctx context.Context, limit int) ([]git.Entry, error) {
	return m.Entries, m.LogErr
}

// MockJournaler blocks in Run until cancelled unless RunErr is set.
type MockJournaler struct {
	RunErr   error
	StatsVal journal.Stats
	rec      *recorder

	mu       sync.Mutex
	enqueued []string
	running  chan struct{}
}

func newMockJournaler(rec *recorder) *MockJournaler {
	return &MockJournaler{rec: rec, running: make(chan struct{})}
}

func (m *MockJournaler) Run(ctx context.Context) error {
	m.rec.add("journal-run")
	close(m.running)
	if m.RunErr != nil {
		return m.RunErr
	}
	<-ctx.Done()
	m.rec.add("journal-stop")
	return nil
}

func (m *MockJournaler) Enqueue(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, path)
}

func (m *MockJournaler) Enqueued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.enqueued...)
}

func (m *MockJournaler) Stats() journal.Stats {
	return m.StatsVal
}

// MockWatcher replays Changes as soon as it starts.
type MockWatcher struct {
	StartErr error
	Changes  []watcher.Change
	rec      *recorder

	mu     sync.Mutex
	closed bool
}

func (m *MockWatcher) Start(onChange func(watcher.Change)) error {
	m.rec.add("watch-start")
	if m.StartErr != nil {
		return m.StartErr
	}
	for _, c := range m.Changes {
		onChange(c)
	}
	return nil
}

func (m *MockWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.rec.add("watch-close")
	return nil
}

func (m *MockWatcher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockIngress serves until Shutdown unless ServeErr is set.
type MockIngress struct {
	ListenErr error
	ServeErr  error
	Port      int
	rec       *recorder

	once    sync.Once
	stopped chan struct{}
}

func newMockIngress(rec *recorder) *MockIngress {
	return &MockIngress{Port: 3000, rec: rec, stopped: make(chan struct{})}
}

func (m *MockIngress) Listen(ctx context.Context) (int, error) {
	m.rec.add("listen")
	if m.ListenErr != nil {
		return 0, m.ListenErr
	}
	return m.Port, nil
}

func (m *MockIngress) Serve() error {
	if m.ServeErr != nil {
		return m.ServeErr
	}
	<-m.stopped
	return nil
}

func (m *MockIngress) Shutdown(ctx context.Context) error {
	m.rec.add("ingress-shutdown")
	m.once.Do(func() { close(m.stopped) })
	return nil
}

// testApp is an App whose components are all mocks.
type testApp struct {
	*App
	rec       *recorder
	stdout    *syncBuffer
	stderr    *syncBuffer
	locker    *MockLocker
	logger    *MockLogger
	journaler *MockJournaler
	watcher   *MockWatcher
	ingress   *MockIngress
}

func newTestApp(repoPath string) *testApp {
	rec := &recorder{}
	ta := &testApp{
		rec:       rec,
		stdout:    &syncBuffer{},
		stderr:    &syncBuffer{},
		locker:    &MockLocker{},
		logger:    &MockLogger{},
		journaler: newMockJournaler(rec),
		watcher:   &MockWatcher{rec: rec},
		ingress:   newMockIngress(rec),
	}

	cfg := config.New()
	cfg.RepoPath = repoPath
	cfg.LogFile = repoPath + "/test.log"

	ta.App = NewApp(AppOptions{
		Config:       cfg,
		Logger:       ta.logger,
		Locker:       ta.locker,
		Store:        &MockStore{},
		Journaler:    ta.journaler,
		Watcher:      ta.watcher,
		Ingress:      ta.ingress,
		Stdout:       ta.stdout,
		Stderr:       ta.stderr,
		Exit:         func(int) {},
		ExecLookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		IsRepository: func(string) (bool, error) { return true, nil },
	})
	return ta
}
