package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bashhack/gitjournal/internal/errors"
	"github.com/bashhack/gitjournal/internal/events"
	"github.com/bashhack/gitjournal/internal/logger"
	"github.com/bashhack/gitjournal/internal/nodemap"
)

// changeBuffer is how many enqueued paths may wait for the loop.
const changeBuffer = 1024

// State is the debounce state of a Journaler.
type State int

const (
	// Idle means nothing is pending and no timer is armed.
	Idle State = iota
	// Armed means a flush is scheduled for the end of the current window.
	Armed
	// Flushing means a batch is being written to the store.
	Flushing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Flushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Store persists snapshot commits and their notes.
type Store interface {
	// Stage records the current contents of paths for the next commit and
	// returns how many were staged.
	Stage(ctx context.Context, paths []string) (int, error)

	// Commit creates a commit dated when and returns its identifier.
	Commit(ctx context.Context, message string, when time.Time) (string, error)

	// AddNote attaches payload to the commit sha, replacing any existing note.
	AddNote(ctx context.Context, sha string, payload []byte) error
}

// Config contains configuration for a Journaler.
type Config struct {
	// Root is the directory paths are made relative to.
	Root string

	// Interval is the debounce window. The window opens on the first
	// activity after idle and is not extended by later activity.
	Interval time.Duration

	// MaxRetries is how many consecutive identical write failures are
	// tolerated quietly before they are reported to the user.
	// 0 never escalates.
	MaxRetries int
}

// Validate sanity-checks the config and returns an error if something is wrong.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("Root must not be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("Interval must be > 0 (got %s)", c.Interval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries cannot be negative (got %d)", c.MaxRetries)
	}
	return nil
}

// Stats summarizes what a Journaler has done.
type Stats struct {
	StartTime  time.Time
	Commits    int
	Events     int
	Failures   int
	LastCommit string
}

// Option customizes a Journaler.
type Option func(*Journaler)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(j *Journaler) { j.clock = clock }
}

// WithNodeMapper replaces the path to node mapping used for notes.
func WithNodeMapper(fn func(string) (string, bool)) Option {
	return func(j *Journaler) { j.nodeFor = fn }
}

// Journaler batches file changes and queued events into debounced commits.
//
// All batching state is owned by the goroutine running Run. Enqueue hands
// paths to it over a channel and the event queue signals arrivals, so no
// lock guards the pending set or the timer.
type Journaler struct {
	config  Config
	store   Store
	queue   *events.Queue
	logger  logger.Logger
	clock   clockwork.Clock
	nodeFor func(string) (string, bool)

	changes chan string
	done    chan struct{}
	started chan struct{}

	// owned by Run
	pending  map[string]struct{}
	timer    clockwork.Timer
	flushing bool
	followUp bool
	unnoted  []noteJob
	failures failureState

	mu           sync.Mutex
	state        State
	pendingCount int
	stats        Stats
}

// New creates a Journaler. Run must be called to start processing.
func New(config Config, store Store, queue *events.Queue, log logger.Logger, opts ...Option) (*Journaler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.NewConfigError("journal", nil, errors.Wrap(errors.ErrInvalidConfiguration, err.Error()))
	}

	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve root %s", config.Root)
	}
	config.Root = root

	j := &Journaler{
		config:  config,
		store:   store,
		queue:   queue,
		logger:  log,
		clock:   clockwork.NewRealClock(),
		nodeFor: nodemap.NodeForPath,
		changes: make(chan string, changeBuffer),
		done:    make(chan struct{}),
		started: make(chan struct{}),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}

	j.stats.StartTime = j.clock.Now()
	return j, nil
}

// Enqueue records that path changed. Absolute paths are made relative to
// the root; relative paths are taken as already root-relative. Paths
// outside the root are dropped with a warning.
func (j *Journaler) Enqueue(path string) {
	rel, ok := j.normalize(path)
	if !ok {
		j.logger.Warning("Ignoring change outside %s: %s", j.config.Root, path)
		return
	}

	select {
	case j.changes <- rel:
	case <-j.done:
		j.logger.Info("Journaler stopped, dropping change to %s", rel)
	}
}

// State returns the current debounce state.
func (j *Journaler) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Pending returns how many distinct paths are waiting for the next flush.
func (j *Journaler) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pendingCount
}

// Stats returns a snapshot of the journaler's counters.
func (j *Journaler) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// Run processes changes until ctx is cancelled. On cancellation it waits
// for an in-flight flush, then writes whatever is still pending before
// returning. Storage failures never end Run.
func (j *Journaler) Run(ctx context.Context) error {
	select {
	case <-j.started:
		return errors.New("journaler already running")
	default:
		close(j.started)
	}
	defer close(j.done)

	// Storage calls are not cancelled; shutdown lets them finish.
	storeCtx := context.WithoutCancel(ctx)
	results := make(chan flushResult, 1)

	j.logger.Info("Journaler started (root %s, interval %s)", j.config.Root, j.config.Interval)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Received cancellation signal, shutting down gracefully...")
			j.shutdown(storeCtx, results)
			return nil

		case path := <-j.changes:
			j.pending[path] = struct{}{}
			j.arm()

		case <-j.queue.Notify():
			j.arm()

		case <-j.timerChan():
			j.timer = nil
			j.startFlush(storeCtx, results)

		case res := <-results:
			j.flushing = false
			failed, rearm := j.complete(res)
			if rearm {
				j.arm()
			}
			if failed {
				// The re-armed window covers the retry.
				j.followUp = false
			}
			if j.followUp {
				j.followUp = false
				j.startFlush(storeCtx, results)
			}
		}

		j.syncState()
	}
}

// arm starts the debounce timer unless one is already running.
func (j *Journaler) arm() {
	if j.timer != nil {
		return
	}
	j.timer = j.clock.NewTimer(j.config.Interval)
}

func (j *Journaler) timerChan() <-chan time.Time {
	if j.timer == nil {
		return nil
	}
	return j.timer.Chan()
}

// takePending swaps the pending set for a fresh one and returns its
// contents sorted.
func (j *Journaler) takePending() []string {
	if len(j.pending) == 0 {
		return nil
	}

	files := make([]string, 0, len(j.pending))
	for path := range j.pending {
		files = append(files, path)
	}
	j.pending = make(map[string]struct{})

	sort.Strings(files)
	return files
}

// syncState publishes the loop's state for State and Pending.
func (j *Journaler) syncState() {
	state := Idle
	switch {
	case j.flushing:
		state = Flushing
	case j.timer != nil:
		state = Armed
	}

	j.mu.Lock()
	j.state = state
	j.pendingCount = len(j.pending)
	j.mu.Unlock()
}

// shutdown finishes an in-flight flush and writes what is left.
func (j *Journaler) shutdown(ctx context.Context, results chan flushResult) {
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}

	if j.flushing {
		j.logger.Info("Waiting for in-flight flush to finish")
		res := <-results
		j.flushing = false
		j.complete(res)
	}

	// Pick up paths that were handed over but not yet received.
	for drained := false; !drained; {
		select {
		case path := <-j.changes:
			j.pending[path] = struct{}{}
		default:
			drained = true
		}
	}

	files := j.takePending()
	if len(files) > 0 || len(j.unnoted) > 0 {
		b := batch{files: files, when: j.clock.Now(), unnoted: j.unnoted}
		if len(files) > 0 {
			b.events = j.queue.DrainAll()
		}
		j.unnoted = nil

		j.logger.Info("Writing final batch of %d paths before exit", len(files))
		j.complete(j.persist(ctx, b))
	}

	if n := j.queue.Len(); n > 0 {
		j.logger.WarningToUser("%d events were not journaled because no file changes followed them", n)
	}
	if len(j.unnoted) > 0 {
		j.logger.WarningToUser("%d commit notes could not be written", len(j.unnoted))
	}

	j.syncState()
}

// normalize turns a watcher path into a clean root-relative slash path.
func (j *Journaler) normalize(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(j.config.Root, path)
		if err != nil {
			return "", false
		}
		path = rel
	}

	path = filepath.Clean(path)
	if path == "." || path == ".." || strings.HasPrefix(path, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(path), true
}
