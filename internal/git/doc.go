// Package git provides the Git storage layer for the gitjournal daemon.
//
// A Journal records snapshot commits on a dedicated ref (by default
// refs/heads/journal) and attaches JSON metadata to them as git notes.
// It drives the git executable with plumbing commands only, so the
// user's checked-out branch, HEAD and index are left exactly as they were.
//
// # Core Components
//
// - Journal: stages paths, writes commits and notes on the journal ref
// - JournalConfig: repository path, refs and commit identity
// - CommandExecutor: interface for executing git commands
//
// # Private Index
//
// Staging happens in an index file that lives inside the git directory
// (gitjournal-<ref>.index) and is selected with GIT_INDEX_FILE. The first
// time it is needed it is seeded from the tip of the journal ref, falling
// back to HEAD and then to an empty tree. Each commit therefore carries the
// full tree of the journal so far, updated with the paths staged since.
//
// # Usage
//
//	journal, err := git.NewJournal(git.JournalConfig{
//	    RepoPath:    "/path/to/repo",
//	    Ref:         "refs/heads/journal",
//	    NotesRef:    "refs/notes/genie",
//	    AuthorName:  "Genie-bot",
//	    AuthorEmail: "genie@example.com",
//	}, logger)
//	if err != nil {
//	    // Handle error
//	}
//
//	staged, err := journal.Stage(ctx, []string{"src/a.ts"})
//	if err != nil || staged == 0 {
//	    // Handle error, or skip the commit
//	}
//	sha, err := journal.Commit(ctx, "genie snapshot: ...", time.Now())
//	if err == nil {
//	    err = journal.AddNote(ctx, sha, payload)
//	}
//
// # Concurrency Model
//
// Writes (Stage, Commit, AddNote) must not run concurrently; the journaler
// serializes them through a single flush worker. Read helpers such as Log
// and ReadNote may be called alongside.
//
// # Dependencies
//
// This package requires a functional Git installation in the system PATH.
package git
