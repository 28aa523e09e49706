package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bashhack/gitjournal/internal/constants"
	journalErrors "github.com/bashhack/gitjournal/internal/errors"
	"github.com/bashhack/gitjournal/internal/logger"
)

// pathBatchSize bounds how many paths go into a single git invocation.
const pathBatchSize = 200

// JournalConfig contains configuration for a Journal store.
type JournalConfig struct {
	// RepoPath is the absolute path of the working tree being journaled.
	RepoPath string

	// Ref receives the snapshot commits, e.g. "refs/heads/journal".
	// It should not be the branch the user has checked out.
	Ref string

	// NotesRef holds the per-commit metadata notes.
	NotesRef string

	// AuthorName and AuthorEmail are used as both author and committer.
	AuthorName  string
	AuthorEmail string
}

// Validate sanity-checks the config and returns an error if something is wrong.
func (c *JournalConfig) Validate() error {
	if c.RepoPath == "" {
		return fmt.Errorf("RepoPath must not be empty")
	}
	if !strings.HasPrefix(c.Ref, "refs/") {
		return fmt.Errorf("Ref must be a full ref name starting with refs/ (got %q)", c.Ref)
	}
	if !strings.HasPrefix(c.NotesRef, "refs/notes/") {
		return fmt.Errorf("NotesRef must start with refs/notes/ (got %q)", c.NotesRef)
	}
	if c.AuthorName == "" || c.AuthorEmail == "" {
		return fmt.Errorf("AuthorName and AuthorEmail must not be empty")
	}
	return nil
}

// Entry is one commit on the journal ref.
type Entry struct {
	SHA     string
	Subject string
	Author  string
	Email   string
}

// Journal writes snapshot commits and notes to a dedicated ref with git
// plumbing. It stages into a private index file so the user's HEAD, index
// and working branch are never touched.
type Journal struct {
	config   JournalConfig
	logger   logger.Logger
	executor CommandExecutor

	mu        sync.Mutex
	gitDir    string
	indexFile string
}

// NewJournal creates a Journal that shells out to the git executable.
func NewJournal(config JournalConfig, logger logger.Logger) (*Journal, error) {
	return NewJournalWithDeps(config, logger, NewExecExecutor())
}

// NewJournalWithDeps creates a Journal with a custom command executor.
func NewJournalWithDeps(config JournalConfig, logger logger.Logger, executor CommandExecutor) (*Journal, error) {
	if err := config.Validate(); err != nil {
		return nil, journalErrors.Wrap(journalErrors.ErrInvalidConfiguration, err.Error())
	}

	return &Journal{
		config:   config,
		logger:   logger,
		executor: executor,
	}, nil
}

// IsRepository checks if the given path is a git repository
// Returns true if it is a repository, false otherwise.
// If path is not a repository due to git exit code 128, returns (false, nil).
// For other errors (git not found, permission issues, etc), returns (false, err).
func IsRepository(path string) (bool, error) {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--is-inside-work-tree")
	if err := NewExecExecutor().Execute(context.Background(), cmd); err != nil {
		// 128 is git's generic fatal exit code; for rev-parse it almost
		// always means there is no repository here.
		if exitCode(err) == 128 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GitDir resolves and caches the absolute git directory of the repository.
func (j *Journal) GitDir(ctx context.Context) (string, error) {
	j.mu.Lock()
	gitDir := j.gitDir
	j.mu.Unlock()
	if gitDir != "" {
		return gitDir, nil
	}

	output, err := j.output(ctx, nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}

	gitDir = strings.TrimSpace(output)
	slug := strings.ReplaceAll(strings.TrimPrefix(j.config.Ref, "refs/"), "/", "-")

	j.mu.Lock()
	j.gitDir = gitDir
	j.indexFile = filepath.Join(gitDir, fmt.Sprintf("%s-%s.index", constants.AppName, slug))
	j.mu.Unlock()
	return gitDir, nil
}

// IndexFile returns the private index path, or "" before GitDir resolves it.
func (j *Journal) IndexFile() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.indexFile
}

// Stage records the current working-tree state of paths in the private
// index and returns how many paths it staged. A path that no longer exists
// is removed along with everything the index holds below it, so a renamed
// or deleted directory takes its files with it. Directories that still
// exist and paths matched by .gitignore are skipped. The private index is
// seeded from the journal ref (or HEAD, or nothing) the first time it is
// needed.
func (j *Journal) Stage(ctx context.Context, paths []string) (int, error) {
	if err := j.ensureIndex(ctx); err != nil {
		return 0, err
	}

	present := make([]string, 0, len(paths))
	var missing []string
	for _, p := range paths {
		info, err := os.Lstat(filepath.Join(j.config.RepoPath, filepath.FromSlash(p)))
		switch {
		case err == nil && info.IsDir():
			continue
		case os.IsNotExist(err):
			missing = append(missing, p)
		default:
			present = append(present, p)
		}
	}

	removed, err := j.removePaths(ctx, missing)
	if err != nil {
		return 0, err
	}

	ignored, err := j.ignoredPaths(ctx, present)
	if err != nil {
		return 0, err
	}

	updated := make([]string, 0, len(present))
	for _, p := range present {
		if ignored[p] {
			j.logger.Info("Skipping ignored path %s", p)
			continue
		}
		updated = append(updated, p)
	}

	for _, batch := range batches(updated) {
		args := append([]string{"update-index", "--add", "--remove", "--"}, batch...)
		if _, err := j.output(ctx, nil, args...); err != nil {
			return 0, err
		}
	}

	staged := removed + len(updated)
	j.logger.Info("Staged %d of %d paths into %s", staged, len(paths), j.IndexFile())
	return staged, nil
}

// Commit writes the private index as a tree and commits it on the journal
// ref, with the current ref tip as parent. The ref is moved with a
// compare-and-swap so a concurrent writer cannot be silently overwritten.
func (j *Journal) Commit(ctx context.Context, message string, when time.Time) (string, error) {
	if err := j.ensureIndex(ctx); err != nil {
		return "", err
	}

	treeOut, err := j.output(ctx, nil, "write-tree")
	if err != nil {
		return "", err
	}
	tree := strings.TrimSpace(treeOut)

	parent, err := j.resolveCommit(ctx, j.config.Ref)
	if err != nil {
		return "", err
	}

	args := []string{"commit-tree", tree}
	if parent != "" {
		args = append(args, "-p", parent)
	}
	args = append(args, "-m", message)

	shaOut, err := j.outputAt(ctx, when, nil, args...)
	if err != nil {
		return "", err
	}
	sha := strings.TrimSpace(shaOut)

	// An empty old value asserts the ref does not exist yet.
	if _, err := j.output(ctx, nil, "update-ref", "-m", message, j.config.Ref, sha, parent); err != nil {
		return "", err
	}

	return sha, nil
}

// AddNote attaches payload to sha on the notes ref, replacing any note
// already there.
func (j *Journal) AddNote(ctx context.Context, sha string, payload []byte) error {
	_, err := j.outputAt(ctx, time.Now(), bytes.NewReader(payload),
		"notes", "--ref", j.config.NotesRef, "add", "-f", "-F", "-", sha)
	return err
}

// ReadNote returns the note attached to sha, or "" when there is none.
func (j *Journal) ReadNote(ctx context.Context, sha string) (string, error) {
	output, err := j.output(ctx, nil, "notes", "--ref", j.config.NotesRef, "show", sha)
	if err != nil {
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Log lists up to limit commits on the journal ref, newest first.
func (j *Journal) Log(ctx context.Context, limit int) ([]Entry, error) {
	tip, err := j.resolveCommit(ctx, j.config.Ref)
	if err != nil || tip == "" {
		return nil, err
	}

	output, err := j.output(ctx, nil, "log", "--format=%H%x1f%s%x1f%an%x1f%ae", "-n", fmt.Sprint(limit), tip)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		entries = append(entries, Entry{SHA: fields[0], Subject: fields[1], Author: fields[2], Email: fields[3]})
	}
	return entries, nil
}

// ensureIndex makes sure the private index exists, seeding it from the
// journal ref tip, HEAD, or an empty tree, in that order.
func (j *Journal) ensureIndex(ctx context.Context) error {
	if _, err := j.GitDir(ctx); err != nil {
		return err
	}

	if _, err := os.Stat(j.IndexFile()); err == nil {
		return nil
	}

	for _, ref := range []string{j.config.Ref, "HEAD"} {
		tip, err := j.resolveCommit(ctx, ref)
		if err != nil {
			return err
		}
		if tip != "" {
			j.logger.Info("Seeding journal index from %s (%s)", ref, tip)
			_, err := j.output(ctx, nil, "read-tree", tip)
			return err
		}
	}

	j.logger.Info("Seeding empty journal index")
	_, err := j.output(ctx, nil, "read-tree", "--empty")
	return err
}

// resolveCommit returns the commit a ref points at, or "" if it does not exist.
func (j *Journal) resolveCommit(ctx context.Context, ref string) (string, error) {
	output, err := j.output(ctx, nil, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		// --verify --quiet exits 1 without output for a missing ref.
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// removePaths drops paths, and every index entry below them, from the
// private index. It returns how many entries were removed.
func (j *Journal) removePaths(ctx context.Context, paths []string) (int, error) {
	removed := 0
	for _, batch := range batches(paths) {
		args := append([]string{"--literal-pathspecs", "rm", "-r", "--cached", "--force", "--ignore-unmatch", "--"}, batch...)
		output, err := j.output(ctx, nil, args...)
		if err != nil {
			return 0, err
		}
		// One "rm '<path>'" line per entry removed.
		for _, line := range strings.Split(output, "\n") {
			if strings.HasPrefix(line, "rm ") {
				removed++
			}
		}
	}
	return removed, nil
}

// ignoredPaths reports which paths .gitignore rules exclude. Output is
// NUL-separated so paths come back unquoted.
func (j *Journal) ignoredPaths(ctx context.Context, paths []string) (map[string]bool, error) {
	ignored := make(map[string]bool)
	for _, batch := range batches(paths) {
		args := append([]string{"check-ignore", "-z", "--"}, batch...)
		output, err := j.output(ctx, nil, args...)
		if err != nil {
			// Exit 1 means none of the paths are ignored.
			if exitCode(err) == 1 {
				continue
			}
			return nil, err
		}
		for _, path := range strings.Split(output, "\x00") {
			if path != "" {
				ignored[path] = true
			}
		}
	}
	return ignored, nil
}

// output runs git in the repository with the private index selected.
func (j *Journal) output(ctx context.Context, stdin *bytes.Reader, args ...string) (string, error) {
	return j.executor.ExecuteWithOutput(ctx, j.command(ctx, nil, stdin, args...))
}

// outputAt is output with author and committer identity dated at when.
func (j *Journal) outputAt(ctx context.Context, when time.Time, stdin *bytes.Reader, args ...string) (string, error) {
	date := fmt.Sprintf("%d %s", when.Unix(), when.Format("-0700"))
	identity := []string{
		"GIT_AUTHOR_NAME=" + j.config.AuthorName,
		"GIT_AUTHOR_EMAIL=" + j.config.AuthorEmail,
		"GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_NAME=" + j.config.AuthorName,
		"GIT_COMMITTER_EMAIL=" + j.config.AuthorEmail,
		"GIT_COMMITTER_DATE=" + date,
	}
	return j.executor.ExecuteWithOutput(ctx, j.command(ctx, identity, stdin, args...))
}

// command builds a git invocation rooted at the repository.
func (j *Journal) command(ctx context.Context, env []string, stdin *bytes.Reader, args ...string) *exec.Cmd {
	allArgs := append([]string{"-C", j.config.RepoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", allArgs...)
	cmd.Env = append(os.Environ(), env...)
	if indexFile := j.IndexFile(); indexFile != "" {
		cmd.Env = append(cmd.Env, "GIT_INDEX_FILE="+indexFile)
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	return cmd
}

// exitCode extracts the process exit code from err, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if journalErrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// batches splits paths into chunks of at most pathBatchSize.
func batches(paths []string) [][]string {
	var out [][]string
	for start := 0; start < len(paths); start += pathBatchSize {
		end := start + pathBatchSize
		if end > len(paths) {
			end = len(paths)
		}
		out = append(out, paths[start:end])
	}
	return out
}
