// Package ingress implements the event ingestion endpoint of the gitjournal
// daemon.
//
// Clients POST a JSON event to /log_event on the loopback interface. Valid
// events are appended to the shared events.Queue and acknowledged with
// 202 Accepted and an empty body; invalid ones are rejected with 400 and
// a JSON error object, leaving the queue untouched. Every other route
// answers 404 {"error":"Not Found"}.
//
// The listener starts at a base port and walks sequential ports while
// they are in use, as described by RetryPolicy. The bound port is printed
// to stdout as a single "JOURNAL_DAEMON_PORT:<port>" line so a parent
// process can discover it.
package ingress
