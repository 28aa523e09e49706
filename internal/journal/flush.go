package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/bashhack/gitjournal/internal/constants"
	"github.com/bashhack/gitjournal/internal/errors"
	"github.com/bashhack/gitjournal/internal/events"
)

// isoMillis is the commit message timestamp layout (UTC, milliseconds).
const isoMillis = "2006-01-02T15:04:05.000Z"

// batch is everything one flush writes.
type batch struct {
	files   []string
	events  []events.Event
	when    time.Time
	unnoted []noteJob
}

// noteJob is a note whose commit exists but whose write has not succeeded.
type noteJob struct {
	sha     string
	payload []byte
}

type flushResult struct {
	batch   batch
	sha     string
	err     error
	noteErr error
	unnoted []noteJob
	// empty is set when the batch staged nothing and no commit was made.
	empty bool
}

// failureState tracks consecutive identical write failures.
type failureState struct {
	consecutiveErrors int
	lastErrorMsg      string
}

// CommitMessage returns the message for a snapshot taken at when that
// carries eventCount events.
func CommitMessage(when time.Time, eventCount int) string {
	msg := constants.CommitMessagePrefix + when.UTC().Format(isoMillis)
	if eventCount > 0 {
		msg += fmt.Sprintf(" (includes %d API events)", eventCount)
	}
	return msg
}

// startFlush snapshots and clears the pending containers, then writes them
// on a worker goroutine. Events without file changes go back to the queue.
func (j *Journaler) startFlush(ctx context.Context, results chan<- flushResult) {
	if j.flushing {
		// Runs as soon as the current flush completes.
		j.followUp = true
		return
	}

	files := j.takePending()
	drained := j.queue.DrainAll()
	unnoted := j.unnoted
	j.unnoted = nil

	if len(files) == 0 {
		if len(drained) > 0 {
			j.queue.Requeue(drained)
			j.logger.Info("No file changes; holding %d events for the next commit", len(drained))
			j.arm()
		}
		drained = nil
		if len(unnoted) == 0 {
			return
		}
	}

	b := batch{
		files:   files,
		events:  drained,
		when:    j.clock.Now(),
		unnoted: unnoted,
	}

	j.flushing = true
	go func() {
		results <- j.persist(ctx, b)
	}()
}

// persist writes a batch to the store. It only touches the store, so it is
// safe to run off the loop goroutine.
func (j *Journaler) persist(ctx context.Context, b batch) flushResult {
	res := flushResult{batch: b}

	for _, job := range b.unnoted {
		if err := j.store.AddNote(ctx, job.sha, job.payload); err != nil {
			res.noteErr = errors.Wrapf(err, "failed to write note for %s", job.sha)
			res.unnoted = append(res.unnoted, job)
			continue
		}
		j.logger.Info("Wrote delayed note for %s", job.sha)
	}

	if len(b.files) == 0 {
		return res
	}

	staged, err := j.store.Stage(ctx, b.files)
	if err != nil {
		res.err = errors.Wrap(err, "failed to stage changes")
		return res
	}
	if staged == 0 {
		res.empty = true
		return res
	}

	sha, err := j.store.Commit(ctx, CommitMessage(b.when, len(b.events)), b.when)
	if err != nil {
		res.err = errors.Wrap(err, "failed to create commit")
		return res
	}
	res.sha = sha

	note := BuildNote(b.files, b.events, j.nodeFor)
	if note.Empty() {
		return res
	}

	payload, err := note.Encode()
	if err != nil {
		// Not retryable; the commit stands without its note.
		j.logger.Error("Failed to encode note for %s: %v", sha, err)
		return res
	}

	if err := j.store.AddNote(ctx, sha, payload); err != nil {
		res.noteErr = errors.Wrapf(err, "failed to write note for %s", sha)
		res.unnoted = append(res.unnoted, noteJob{sha: sha, payload: payload})
	}
	return res
}

// complete applies a flush result on the loop goroutine. It reports whether
// the write failed and whether the timer should be re-armed.
func (j *Journaler) complete(res flushResult) (failed, rearm bool) {
	j.unnoted = append(j.unnoted, res.unnoted...)

	if res.err != nil {
		for _, path := range res.batch.files {
			j.pending[path] = struct{}{}
		}
		j.queue.Requeue(res.batch.events)

		j.mu.Lock()
		j.stats.Failures++
		j.mu.Unlock()

		j.recordFailure(res.err)
		failed, rearm = true, true
	} else if res.sha != "" {
		j.failures = failureState{}

		j.mu.Lock()
		j.stats.Commits++
		j.stats.Events += len(res.batch.events)
		j.stats.LastCommit = res.sha
		j.mu.Unlock()

		j.logger.Success("Journal commit %s (%d files, %d events)", shortSHA(res.sha), len(res.batch.files), len(res.batch.events))
	} else if res.empty {
		j.logger.Info("Nothing staged from %d paths; no commit", len(res.batch.files))
		if len(res.batch.events) > 0 {
			j.queue.Requeue(res.batch.events)
			j.logger.Info("Holding %d events for the next commit", len(res.batch.events))
			rearm = true
		}
	}

	if res.noteErr != nil {
		j.mu.Lock()
		j.stats.Failures++
		j.mu.Unlock()

		j.recordFailure(res.noteErr)
		rearm = true
	}

	return failed, rearm
}

// recordFailure logs a write failure, escalating to the user once the same
// error has repeated more than MaxRetries times in a row.
func (j *Journaler) recordFailure(err error) {
	currentErrorMsg := err.Error()
	if currentErrorMsg == j.failures.lastErrorMsg {
		j.failures.consecutiveErrors++
	} else {
		j.failures.consecutiveErrors = 1
		j.failures.lastErrorMsg = currentErrorMsg
	}

	// '>' so that MaxRetries = 1 allows one quiet retry.
	if j.config.MaxRetries > 0 && j.failures.consecutiveErrors > j.config.MaxRetries {
		j.logger.Error("Journal write failing repeatedly: %v", err)
		j.logger.WarningToUser("Journal writes keep failing (same error %d times in a row); will keep retrying every %s",
			j.failures.consecutiveErrors, j.config.Interval)
		return
	}
	j.logger.Warning("Journal write failed, will retry next window: %v", err)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
