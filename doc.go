// Package gitjournal records a working tree into git as it changes.
//
// gitjournal runs next to an editor, agent or build loop. It watches a
// repository, waits for a short quiet window after the first change, and
// writes a snapshot commit on a dedicated ref. Each snapshot gets a git
// note listing the nodes whose files changed and any events other tools
// posted to the daemon during the window. The checked-out branch, the
// user's index and the files themselves are never modified.
//
// # Quick Start
//
//	# Navigate to your Git repository
//	cd /path/to/your/repo
//
//	# Start journaling with default settings (4 second window)
//	gitjournal
//
//	# Press Ctrl+C to stop; pending changes are committed first
//
// # Key Features
//
//   - Debounced Snapshots: one commit per window, however many files changed
//   - Side Ref: commits land on refs/heads/journal, never on your branch
//   - Notes: JSON metadata per commit under refs/notes/genie
//   - Event Ingestion: POST /log_event on localhost, port announced on stdout
//   - Recovery: failed writes keep their changes and retry on the next window
//
// # Module Structure
//
// The module is organized into these packages:
//
//   - cmd/gitjournal: Command-line interface and daemon wiring
//   - internal/journal: Debounce loop, flushes and note payloads
//   - internal/git: Commits and notes through git plumbing and a private index
//   - internal/watcher: Recursive file watching with ignore globs
//   - internal/ingress: HTTP event endpoint and port selection
//   - internal/events: Event type, schema validation and the pending queue
//   - internal/nodemap: Mapping of paths to node names
//   - internal/config: Flags, environment and config file
//   - internal/lock: Single daemon per repository
//   - internal/logger: Logging facilities
//   - internal/errors: Error handling utilities
//   - internal/constants: Shared refs, identities and prefixes
//
// # Reading the Journal
//
//	# Snapshots, newest first
//	git log --oneline refs/heads/journal
//
//	# Metadata for the latest snapshot
//	git notes --ref refs/notes/genie show refs/heads/journal
//
//	# What one snapshot changed
//	git show --stat <sha>
//
// # Implementation Notes
//
// gitjournal uses the command-line Git executable rather than a Go Git library to ensure
// compatibility with all Git features and repository configurations. Commands are
// executed through an abstracted interface that can be replaced for testing.
//
// The application handles signals (such as SIGINT, SIGTERM, and SIGHUP) so the
// last window is committed and the lock released before exit.
package gitjournal
