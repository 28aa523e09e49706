// Package lock provides file-based locking for the gitjournal daemon.
//
// Only one daemon may journal a repository at a time: two daemons would race
// on the private index and on the compare-and-swap update of the journal ref.
// The lock is an flock(2) on <git-dir>/gitjournal.lock, which also records
// the PID of the holder so a refused daemon can say who is in the way.
//
// Because the kernel releases flocks when a process exits, a lock file left
// behind by a crashed daemon does not block the next one.
//
// # Usage
//
//	locker, err := lock.New(gitDir)
//	if err != nil {
//	    return err
//	}
//	if err := locker.Acquire(); err != nil {
//	    return err // errors.ErrAlreadyRunning when another daemon holds it
//	}
//	defer locker.Release()
package lock
