package constants

const (
	// AppName is used for log directories, lock files and the private index.
	AppName = "gitjournal"

	// DefaultJournalRef is the branch that receives snapshot commits.
	DefaultJournalRef = "refs/heads/journal"

	// NotesRef is the fixed notes ref holding per-commit metadata.
	NotesRef = "refs/notes/genie"

	// DefaultAuthorName and DefaultAuthorEmail identify snapshot commits.
	DefaultAuthorName  = "Genie-bot"
	DefaultAuthorEmail = "genie@example.com"

	// CommitMessagePrefix starts every snapshot commit message.
	CommitMessagePrefix = "genie snapshot: "

	// PortAnnouncementPrefix starts the stdout line reporting the bound
	// ingestion port, e.g. "JOURNAL_DAEMON_PORT:3000".
	PortAnnouncementPrefix = "JOURNAL_DAEMON_PORT:"

	// EnvPrefix prefixes environment variables read by the config package.
	EnvPrefix = "GITJOURNAL"

	// Tagline is shown with the startup banner.
	Tagline = "Your workspace, journaled while you work."
)
