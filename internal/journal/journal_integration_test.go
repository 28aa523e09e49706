package journal

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/gitjournal/internal/constants"
	"github.com/bashhack/gitjournal/internal/events"
	"github.com/bashhack/gitjournal/internal/git"
	"github.com/bashhack/gitjournal/internal/logger"
)

const realInterval = 100 * time.Millisecond

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// setupRealJournal creates a repository and a Journaler writing to it with
// the real clock.
func setupRealJournal(t *testing.T) (string, *Journaler, *git.Journal, *events.Queue) {
	t.Helper()

	repo := t.TempDir()
	runGit(t, repo, "init")
	runGit(t, repo, "config", "user.email", "test@example.com")
	runGit(t, repo, "config", "user.name", "Test User")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("hello"), 0o644))
	runGit(t, repo, "add", "README.md")
	runGit(t, repo, "commit", "-m", "Initial commit")

	log := logger.NewWithOutput(false, "", false, io.Discard, io.Discard)
	store, err := git.NewJournal(git.JournalConfig{
		RepoPath:    repo,
		Ref:         constants.DefaultJournalRef,
		NotesRef:    constants.NotesRef,
		AuthorName:  constants.DefaultAuthorName,
		AuthorEmail: constants.DefaultAuthorEmail,
	}, log)
	require.NoError(t, err)

	queue := events.NewQueue()
	j, err := New(Config{Root: repo, Interval: realInterval, MaxRetries: 3}, store, queue, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return repo, j, store, queue
}

func TestRealRepositoryJournal(t *testing.T) {
	t.Parallel()

	repo, j, store, queue := setupRealJournal(t)
	ctx := context.Background()

	queue.Append(events.Event{Type: "tool_call", Timestamp: "2024-05-01T10:00:00Z"})

	file := filepath.Join(repo, "nodes", "alpha", "file.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("content"), 0o644))
	j.Enqueue(file)
	j.Enqueue("README.md")

	var entries []git.Entry
	require.Eventually(t, func() bool {
		var err error
		entries, err = store.Log(ctx, 10)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Regexp(t, `^genie snapshot: \S+Z \(includes 1 API events\)$`, entries[0].Subject)
	assert.Equal(t, constants.DefaultAuthorName, entries[0].Author)

	// The first journal commit is a root; its tree starts from HEAD's.
	files := strings.Fields(runGit(t, repo, "ls-tree", "-r", "--name-only", entries[0].SHA))
	assert.ElementsMatch(t, []string{"README.md", "nodes/alpha/file.txt"}, files)

	var raw string
	var err error
	require.Eventually(t, func() bool {
		raw, err = store.ReadNote(ctx, entries[0].SHA)
		return err == nil && raw != ""
	}, 5*time.Second, 20*time.Millisecond)

	note, err := DecodeNote([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, note.Nodes)
	require.Len(t, note.Events, 1)
	assert.Equal(t, "tool_call", note.Events[0].Type)

	// The user's branch is untouched.
	assert.Equal(t, "Initial commit", runGit(t, repo, "log", "-1", "--format=%s", "HEAD"))
	assert.Contains(t, runGit(t, repo, "status", "--porcelain"), "?? nodes/")
}

func TestRealRepositoryEventsOnly(t *testing.T) {
	t.Parallel()

	_, _, store, queue := setupRealJournal(t)

	queue.Append(events.Event{Type: "ping", Timestamp: "t"})
	time.Sleep(3 * realInterval)

	entries, err := store.Log(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "events alone must not create a journal ref")
	assert.Equal(t, 1, queue.Len())
}
