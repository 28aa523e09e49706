package events

import "sync"

// Queue is an unbounded FIFO of events shared between the ingestion
// listener, which appends, and the journaler, which drains and requeues.
type Queue struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Append adds an event to the tail of the queue and signals Notify.
func (q *Queue) Append(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// DrainAll removes and returns every queued event in arrival order.
func (q *Queue) DrainAll() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.events
	q.events = nil
	return drained
}

// Requeue puts events back at the head of the queue, ahead of anything
// that arrived since they were drained. It does not signal Notify.
func (q *Queue) Requeue(events []Event) {
	if len(events) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]Event, 0, len(events)+len(q.events))
	merged = append(merged, events...)
	q.events = append(merged, q.events...)
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Notify returns a channel that receives a value after one or more
// Appends. Bursts coalesce into a single signal.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
