// Package journal implements the debounced snapshot journaler at the heart
// of gitjournal.
//
// A Journaler collects changed paths (from the file watcher) and structured
// events (from the ingestion endpoint's queue) and turns each debounce
// window's worth of activity into a single commit on the journal ref, plus a
// git note that lists the logical nodes touched and the events received.
//
// # Lifecycle
//
// The Journaler moves between three states:
//
//   - Idle: nothing pending, no timer.
//   - Armed: the first change or event after idle starts a timer of
//     Interval. Further activity does not extend it.
//   - Flushing: when the timer fires, the pending paths and queued events
//     are snapshotted and cleared in one step, then written by a worker.
//     Activity during the write collects in fresh containers and arms a
//     new window. A window that ends while a write is still running is
//     flushed as soon as that write completes.
//
// A flush with no changed paths never commits. Any drained events go back
// to the head of the queue, in order, to ride along with the next commit
// that does have file changes.
//
// # Failure Handling
//
// When staging or committing fails, the batch's paths and events are put
// back and the timer is re-armed, so the retry happens on the next window
// rather than in a tight loop. A note that fails to write after its commit
// succeeded is retried on later windows. Consecutive identical failures are
// counted and, past MaxRetries, reported to the user. Failures never stop
// the Journaler.
//
// # Shutdown
//
// Cancelling the context passed to Run lets an in-flight write finish and
// then writes whatever is still pending before Run returns.
package journal
