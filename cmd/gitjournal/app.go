package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bashhack/gitjournal/internal/config"
	"github.com/bashhack/gitjournal/internal/constants"
	journalErrors "github.com/bashhack/gitjournal/internal/errors"
	"github.com/bashhack/gitjournal/internal/events"
	"github.com/bashhack/gitjournal/internal/git"
	"github.com/bashhack/gitjournal/internal/ingress"
	"github.com/bashhack/gitjournal/internal/journal"
	"github.com/bashhack/gitjournal/internal/lock"
	"github.com/bashhack/gitjournal/internal/logger"
	"github.com/bashhack/gitjournal/internal/watcher"
)

// shutdownTimeout bounds how long in-flight event requests may take once
// shutdown starts.
const shutdownTimeout = 5 * time.Second

// summaryEntries is how many journal commits the session summary lists.
const summaryEntries = 5

// Store is the git side of the daemon: snapshot writes plus the reads the
// lock and the session summary need.
type Store interface {
	journal.Store
	GitDir(ctx context.Context) (string, error)
	Log(ctx context.Context, limit int) ([]git.Entry, error)
}

// Journaler batches changes and events into commits.
type Journaler interface {
	Run(ctx context.Context) error
	Enqueue(path string)
	Stats() journal.Stats
}

// ChangeSource reports file changes under the repository.
type ChangeSource interface {
	Start(onChange func(watcher.Change)) error
	Close() error
}

// Ingress accepts events from other processes.
type Ingress interface {
	Listen(ctx context.Context) (int, error)
	Serve() error
	Shutdown(ctx context.Context) error
}

// Locker manages file locking
type Locker interface {
	Acquire() error
	Release() error
}

// AppOptions contains app configuration and dependencies.
// Every component is optional except Config; Initialize builds the
// missing ones from the configuration.
type AppOptions struct {
	// Config holds the application configuration settings (required).
	// The application will panic if this field is nil.
	Config *config.Config

	// Optional components

	// Logger provides logging functionality.
	Logger logger.Logger

	// Locker keeps a second daemon off the repository. The default lives
	// in the git directory.
	Locker Locker

	// Queue holds accepted events until the next commit.
	Queue *events.Queue

	// Store writes commits and notes.
	Store Store

	// Journaler debounces changes into commits.
	Journaler Journaler

	// Watcher feeds file changes to the journaler.
	Watcher ChangeSource

	// Ingress serves POST /log_event.
	Ingress Ingress

	// I/O dependencies

	// Stdout is the writer for standard output (optional, defaults to os.Stdout).
	Stdout io.Writer

	// Stderr is the writer for error output (optional, defaults to os.Stderr).
	Stderr io.Writer

	// System dependencies

	// Exit is the function to terminate the application (optional, defaults to os.Exit).
	Exit func(code int)

	// ExecLookPath is used to find executables in PATH (optional, defaults to exec.LookPath).
	ExecLookPath func(file string) (string, error)

	// IsRepository checks if a path is a valid Git repository (optional, defaults to git.IsRepository).
	IsRepository func(string) (bool, error)
}

// App is the gitjournal daemon.
// It owns every component and their startup and shutdown order.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Locker    Locker
	Queue     *events.Queue
	Store     Store
	Journaler Journaler
	Watcher   ChangeSource
	Ingress   Ingress

	Stdout io.Writer
	Stderr io.Writer

	exit         func(code int)
	execLookPath func(file string) (string, error)
	isRepository func(string) (bool, error)

	// ran is set once the journaler has started, so a summary is meaningful.
	ran atomic.Bool

	// The signal goroutine and main may both finish the session.
	summaryOnce sync.Once
	closeOnce   sync.Once
	closeErr    error
}

// NewDefaultApp creates an App with standard dependencies.
// Flags, environment and config file are merged later by the root command.
func NewDefaultApp(versionInfo config.VersionInfo) *App {
	cfg := config.New()
	cfg.VersionInfo = versionInfo

	return NewApp(AppOptions{
		Config:       cfg,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Exit:         os.Exit,
		ExecLookPath: exec.LookPath,
		IsRepository: git.IsRepository,
	})
}

// NewApp creates an App with custom dependencies specified in opts.
// It panics if Config is nil.
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		panic("Config is required in AppOptions")
	}

	app := &App{
		Config:       opts.Config,
		Logger:       opts.Logger,
		Locker:       opts.Locker,
		Queue:        opts.Queue,
		Store:        opts.Store,
		Journaler:    opts.Journaler,
		Watcher:      opts.Watcher,
		Ingress:      opts.Ingress,
		Stdout:       opts.Stdout,
		Stderr:       opts.Stderr,
		exit:         opts.Exit,
		execLookPath: opts.ExecLookPath,
		isRepository: opts.IsRepository,
	}

	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.exit == nil {
		app.exit = os.Exit
	}
	if app.execLookPath == nil {
		app.execLookPath = exec.LookPath
	}
	if app.isRepository == nil {
		app.isRepository = git.IsRepository
	}

	return app
}

// Initialize validates the configuration and builds the components not
// provided during construction. Nothing here touches the network or the
// repository.
func (a *App) Initialize() error {
	if err := a.Config.Finalize(); err != nil {
		if journalErrors.Is(err, journalErrors.ErrInvalidConfiguration) {
			return err
		}
		return journalErrors.Wrap(journalErrors.ErrInvalidConfiguration, err.Error())
	}

	if a.Logger == nil {
		a.Logger = logger.New(a.Config.Debug, a.Config.LogFile, a.Config.Verbose)
	}

	if a.Queue == nil {
		a.Queue = events.NewQueue()
	}

	if a.Store == nil {
		store, err := git.NewJournal(git.JournalConfig{
			RepoPath:    a.Config.RepoPath,
			Ref:         a.Config.Ref,
			NotesRef:    a.Config.NotesRef,
			AuthorName:  a.Config.AuthorName,
			AuthorEmail: a.Config.AuthorEmail,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create journal store: %w", err)
		}
		a.Store = store
	}

	if a.Journaler == nil {
		j, err := journal.New(journal.Config{
			Root:       a.Config.RepoPath,
			Interval:   a.Config.Interval(),
			MaxRetries: a.Config.MaxRetries,
		}, a.Store, a.Queue, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create journaler: %w", err)
		}
		a.Journaler = j
	}

	if a.Watcher == nil {
		w, err := watcher.New(a.Config.RepoPath, a.Config.Ignore, a.Logger)
		if err != nil {
			return journalErrors.NewConfigError("ignore", a.Config.Ignore,
				journalErrors.Wrap(journalErrors.ErrInvalidConfiguration, err.Error()))
		}
		a.Watcher = w
	}

	if a.Ingress == nil {
		policy := ingress.DefaultRetryPolicy()
		policy.BasePort = a.Config.APIPort
		policy.MaxAttempts = a.Config.PortRetries

		srv, err := ingress.New(ingress.Config{Host: ingress.DefaultHost, Policy: policy}, a.Queue, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create event endpoint: %w", err)
		}
		a.Ingress = srv
	}

	return nil
}

// Run starts the daemon and blocks until ctx is cancelled or the event
// endpoint fails. Pending changes are committed before it returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(); err != nil {
		return err
	}

	if err := a.checkRequiredCommands(); err != nil {
		_, _ = fmt.Fprintf(a.Stderr, "❌ Error: %v. Please install it and try again.\n", err)
		return err
	}

	isRepo, err := a.isRepository(a.Config.RepoPath)
	if err != nil {
		a.Logger.Warning("Failed to check if path is a git repository: %v", err)
		return journalErrors.Wrap(journalErrors.ErrGitOperationFailed, err.Error())
	}
	if !isRepo {
		return journalErrors.Wrap(journalErrors.ErrNotGitRepository, a.Config.RepoPath)
	}
	a.Logger.Info("Git repository verified")

	if err := a.acquireLock(ctx); err != nil {
		return err
	}

	if _, err := a.Ingress.Listen(ctx); err != nil {
		return err
	}

	a.showBanner()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	journalDone := make(chan error, 1)
	go func() {
		journalDone <- a.Journaler.Run(runCtx)
	}()
	a.ran.Store(true)

	if err := a.Watcher.Start(func(c watcher.Change) {
		a.Journaler.Enqueue(c.Path)
	}); err != nil {
		a.stopIngress()
		cancel()
		<-journalDone
		return journalErrors.Wrap(err, "failed to start file watcher")
	}

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- a.Ingress.Serve()
	}()

	var runErr error
	journalStopped := false

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		serveDone = nil
		if err != nil {
			runErr = journalErrors.Wrap(err, "event endpoint stopped")
			a.Logger.Error("%v", runErr)
		}
	case err := <-journalDone:
		journalStopped = true
		runErr = err
	}

	// New input stops first so the final flush sees everything accepted.
	a.stopIngress()
	if serveDone != nil {
		if err := <-serveDone; err != nil && runErr == nil {
			runErr = journalErrors.Wrap(err, "event endpoint stopped")
		}
	}
	if err := a.Watcher.Close(); err != nil {
		a.Logger.Warning("Failed to stop file watcher: %v", err)
	}

	cancel()
	if !journalStopped {
		if err := <-journalDone; err != nil && runErr == nil {
			runErr = err
		}
	}

	return runErr
}

func (a *App) acquireLock(ctx context.Context) error {
	if a.Locker == nil {
		gitDir, err := a.Store.GitDir(ctx)
		if err != nil {
			return journalErrors.Wrap(err, "failed to locate git directory")
		}
		locker, err := lock.New(gitDir)
		if err != nil {
			return journalErrors.Wrap(err, "failed to initialize lock")
		}
		a.Locker = locker
	}

	if err := a.Locker.Acquire(); err != nil {
		if journalErrors.Is(err, journalErrors.ErrAlreadyRunning) {
			return err
		}
		return journalErrors.Wrap(journalErrors.ErrLockAcquisitionFailure, err.Error())
	}
	return nil
}

func (a *App) stopIngress() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Ingress.Shutdown(ctx); err != nil {
		a.Logger.Warning("Event endpoint did not shut down cleanly: %v", err)
	}
}

func (a *App) showBanner() {
	a.Logger.InfoToUser("gitjournal %s: %s", a.Config.VersionInfo.Version, constants.Tagline)
	a.Logger.InfoToUser("Journaling %s to %s every %s", a.Config.RepoPath, a.Config.Ref, a.Config.Interval())
	if len(a.Config.Ignore) > 0 {
		a.Logger.InfoToUser("Ignoring %v", a.Config.Ignore)
	}
}

func versionString(v config.VersionInfo) string {
	return fmt.Sprintf("%s (%s) built on %s", v.Version, v.Commit, v.Date)
}

// PrintSummary reports what the session journaled. It prints nothing if the
// journaler never started, and only once per session.
func (a *App) PrintSummary() {
	if !a.ran.Load() || a.Journaler == nil || a.Logger == nil {
		return
	}
	a.summaryOnce.Do(a.printSummary)
}

func (a *App) printSummary() {
	stats := a.Journaler.Stats()
	duration := time.Since(stats.StartTime)
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	a.Logger.StatusMessage("")
	a.Logger.StatusMessage("---------------------------------------------")
	a.Logger.StatusMessage("📊 gitjournal Session Summary")
	a.Logger.StatusMessage("---------------------------------------------")
	a.Logger.StatusMessage("✅ Journal commits made: %d", stats.Commits)
	a.Logger.StatusMessage("📨 Events recorded: %d", stats.Events)
	if stats.Failures > 0 {
		a.Logger.StatusMessage("⚠️  Failed writes: %d", stats.Failures)
	}
	a.Logger.StatusMessage("⏱️  Session duration: %dh %dm %ds", hours, minutes, seconds)
	a.Logger.StatusMessage("🌿 Journal ref: %s (notes in %s)", a.Config.Ref, a.Config.NotesRef)

	if a.Store != nil {
		entries, err := a.Store.Log(context.Background(), summaryEntries)
		if err != nil {
			a.Logger.Warning("Failed to read journal log: %v", err)
		} else if len(entries) > 0 {
			a.Logger.StatusMessage("")
			a.Logger.StatusMessage("Latest journal commits:")
			for _, e := range entries {
				a.Logger.StatusMessage("  %.8s %s", e.SHA, e.Subject)
			}
			a.Logger.StatusMessage("")
			a.Logger.StatusMessage("To inspect a snapshot and its metadata:")
			a.Logger.StatusMessage("  git show %s", a.Config.Ref)
			a.Logger.StatusMessage("  git notes --ref %s show %s", a.Config.NotesRef, a.Config.Ref)
		}
	}

	a.Logger.StatusMessage("---------------------------------------------")
	a.Logger.StatusMessage("🛑 gitjournal terminated at %s", time.Now().Format("2006-01-02 15:04:05"))
}

// checkRequiredCommands verifies git is available in PATH
func (a *App) checkRequiredCommands() error {
	_, err := a.execLookPath("git")
	if err != nil {
		return fmt.Errorf("git is not found in PATH")
	}
	return nil
}

// Close releases resources held by the App. Only the first call does the
// work; later and concurrent calls return its result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close()
	})
	return a.closeErr
}

func (a *App) close() error {
	var errs []error

	if a.Locker != nil {
		if err := a.Locker.Release(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("Failed to release lock during cleanup: %v", err)
			} else {
				_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to release lock during cleanup: %v\n", err)
			}
			errs = append(errs, err)
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return journalErrors.Join(errs...)
	}
	return nil
}

// CleanupOnSignal releases the lock and shows a summary when shutdown
// takes too long.
func (a *App) CleanupOnSignal() {
	a.PrintSummary()
	if err := a.Close(); err != nil {
		_, _ = fmt.Fprintf(a.Stderr, "❌ Error during cleanup: %v\n", err)
	}
}
