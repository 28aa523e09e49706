// Package main implements gitjournal, a daemon that journals a working tree
// into git.
//
// gitjournal watches a repository's working tree and, after a short quiet
// window, records a snapshot commit on a dedicated ref. Your checked-out
// branch, index and files are never touched: snapshots are built in a
// private index and only the journal ref moves. Each snapshot carries a git
// note with the nodes whose files changed and any events other tools
// submitted during the window.
//
// # Features
//
//   - Debounced snapshots (default: 4 second window, not extended by further edits)
//   - Dedicated journal ref, leaving HEAD and the user's index alone
//   - Notes with per-snapshot metadata under refs/notes/genie
//   - HTTP event ingestion on localhost with automatic port selection
//   - Ignore globs on top of .gitignore
//   - Single daemon per repository, enforced with a lock in the git directory
//   - Failed writes retried on the next window without losing changes
//
// # Basic Usage
//
//	gitjournal                          # Journal the current directory
//	gitjournal -i 1000                  # One second window
//	gitjournal --ignore 'dist/**,*.tmp' # Skip build output and temp files
//	gitjournal --repo ~/src/project     # Journal another checkout
//
// On startup the bound event port is printed as a line of its own:
//
//	JOURNAL_DAEMON_PORT:3000
//
// Events are submitted as JSON with at least a type and a timestamp:
//
//	curl -X POST localhost:3000/log_event \
//	  -d '{"type":"build","timestamp":"2024-05-01T10:00:00Z"}'
//
// # Configuration Options
//
// Every flag can also be given as a GITJOURNAL_* environment variable or as
// a key in the file named by --config:
//
//	-i, --interval    Debounce window in milliseconds (env: GITJOURNAL_INTERVAL)
//	--ignore          Comma-separated ignore globs (env: GITJOURNAL_IGNORE)
//	--api-port        First port tried for events (env: GITJOURNAL_API_PORT)
//	--port-retries    Sequential ports to try (env: GITJOURNAL_PORT_RETRIES)
//	--repo            Repository path (env: GITJOURNAL_REPO)
//	--ref             Journal ref (env: GITJOURNAL_REF)
//	--notes-ref       Notes ref (env: GITJOURNAL_NOTES_REF)
//	--max-retries     Identical failures before warning (env: GITJOURNAL_MAX_RETRIES)
//	-q, --quiet       Hide informational messages (env: GITJOURNAL_QUIET=true)
//	--debug           Enable detailed logging (env: GITJOURNAL_DEBUG=true)
//	--version         Print version information and exit
//
// # Reading the Journal
//
//	git log refs/heads/journal
//	git notes --ref refs/notes/genie show refs/heads/journal
package main
