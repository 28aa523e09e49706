package lock

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/bashhack/gitjournal/internal/constants"
	journalErrors "github.com/bashhack/gitjournal/internal/errors"
)

// Locker keeps a second gitjournal daemon off a repository. Two daemons
// would race on the private index and the journal ref.
type Locker struct {
	lockFile string
	lockFd   *os.File
	pid      int
}

// New creates a Locker whose lock file lives in the given git directory.
func New(gitDir string) (*Locker, error) {
	if runtime.GOOS == "windows" {
		return nil, journalErrors.NewLockError("", 0,
			journalErrors.Wrap(journalErrors.ErrLockAcquisitionFailure,
				"gitjournal only supports Unix-like operating systems"))
	}

	return &Locker{
		lockFile: filepath.Join(gitDir, constants.AppName+".lock"),
		pid:      os.Getpid(),
	}, nil
}

// Path returns the lock file location.
func (l *Locker) Path() string {
	return l.lockFile
}

// Acquire takes an exclusive, non-blocking flock on the lock file and records
// our PID in it. The kernel drops the flock when the holder dies, so a lock
// file left behind by a crashed daemon is simply reused.
func (l *Locker) Acquire() error {
	if l.lockFd != nil {
		return nil
	}

	fd, err := os.OpenFile(l.lockFile, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return journalErrors.NewLockError(l.lockFile, 0,
			journalErrors.Wrap(err, "failed to open lock file"))
	}

	if err := syscall.Flock(int(fd.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = fd.Close()

		// EWOULDBLOCK and EAGAIN are distinct on some older systems.
		if journalErrors.Is(err, syscall.EWOULDBLOCK) || journalErrors.Is(err, syscall.EAGAIN) {
			otherPid, _ := readPid(l.lockFile)
			return journalErrors.NewLockError(l.lockFile, otherPid, journalErrors.ErrAlreadyRunning)
		}

		return journalErrors.NewLockError(l.lockFile, 0,
			journalErrors.Wrap(journalErrors.ErrLockAcquisitionFailure, err.Error()))
	}

	if err := fd.Truncate(0); err != nil {
		_ = fd.Close()
		return journalErrors.NewLockError(l.lockFile, l.pid,
			journalErrors.Wrap(err, "failed to truncate lock file"))
	}

	if _, err := fd.WriteAt([]byte(strconv.Itoa(l.pid)), 0); err != nil {
		_ = fd.Close()
		return journalErrors.NewLockError(l.lockFile, l.pid,
			journalErrors.Wrap(err, "failed to write PID to lock file"))
	}

	l.lockFd = fd
	return nil
}

// Release unlocks and removes the lock file. Releasing a lock that was never
// acquired is a no-op.
func (l *Locker) Release() error {
	if l.lockFd == nil {
		return nil
	}

	var err error

	// Remove before unlocking so a competitor never flocks a file we are about to delete.
	if removeErr := os.Remove(l.lockFile); removeErr != nil && !os.IsNotExist(removeErr) {
		err = journalErrors.NewLockError(l.lockFile, l.pid,
			journalErrors.Wrap(removeErr, "failed to remove lock file"))
	}

	if flockErr := syscall.Flock(int(l.lockFd.Fd()), syscall.LOCK_UN); flockErr != nil && err == nil {
		err = journalErrors.NewLockError(l.lockFile, l.pid,
			journalErrors.Wrap(flockErr, "failed to release lock"))
	}

	if closeErr := l.lockFd.Close(); closeErr != nil && err == nil {
		err = journalErrors.NewLockError(l.lockFile, l.pid,
			journalErrors.Wrap(closeErr, "failed to close lock file"))
	}

	l.lockFd = nil
	return err
}

// readPid reads the PID recorded by the current holder.
func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
