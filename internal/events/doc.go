// Package events defines the structured events accepted by the ingestion
// endpoint and the queue that carries them to the journaler.
//
// Events are validated against a JSON Schema reflected from the Event
// struct, so the struct tags are the single source of truth for which
// fields are required. The Queue preserves arrival order end to end: the
// journaler drains it at flush time and, when a flush commits nothing,
// requeues the drained events ahead of newer arrivals.
package events
