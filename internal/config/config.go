package config

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bashhack/gitjournal/internal/constants"
	journalErrors "github.com/bashhack/gitjournal/internal/errors"
)

const (
	// DefaultIntervalMs is the debounce window in milliseconds. The first
	// change after idle opens the window; everything that arrives before it
	// closes lands in the same commit.
	DefaultIntervalMs = 4000

	// DefaultAPIPort is the first port tried for the event endpoint.
	DefaultAPIPort = 3000

	// DefaultPortRetries is how many sequential ports are tried before
	// startup fails.
	DefaultPortRetries = 100

	// DefaultMaxRetries is the number of consecutive identical write failures
	// tolerated quietly before the user is warned. A value of 0 never warns.
	// Writes are retried on every window regardless.
	DefaultMaxRetries = 3
)

// Config holds all gitjournal settings.
// Values are layered, highest first: command-line flags, GITJOURNAL_*
// environment variables, the config file, then the defaults from New.
type Config struct {
	// Repository configuration

	// RepoPath is the working tree to watch and journal.
	// If empty, the current working directory is used.
	RepoPath string

	// IntervalMs is the debounce window in milliseconds.
	IntervalMs int

	// Ignore holds extra glob patterns excluded from watching.
	// .git is always excluded.
	Ignore []string

	// Ref is the branch receiving snapshot commits. A bare name such as
	// "journal" is expanded to refs/heads/journal.
	Ref string

	// NotesRef holds the per-commit metadata notes.
	NotesRef string

	// AuthorName and AuthorEmail identify snapshot commits.
	AuthorName  string
	AuthorEmail string

	// Event endpoint

	// APIPort is the first port tried for the event listener. 0 lets the
	// kernel pick one.
	APIPort int

	// PortRetries is how many sequential ports are tried.
	PortRetries int

	// Error handling options

	// MaxRetries is how many consecutive identical write failures pass
	// before the user is warned.
	MaxRetries int

	// User experience options

	// Verbose controls informational output. --quiet clears it.
	Verbose bool

	// Debugging options

	// Debug enables the rotating debug log.
	Debug bool

	// LogFile is where debug logs go. If empty, a per-repository file under
	// the XDG data directory is used.
	LogFile string

	// ConfigFile is an optional YAML, TOML or JSON file with the same keys
	// as the long flag names.
	ConfigFile string

	// VersionInfo contains version, commit, and build date information.
	// This is typically injected at build time.
	VersionInfo VersionInfo
}

// VersionInfo contains build-time version metadata.
type VersionInfo struct {
	// Version is the semantic version number (e.g., "v1.2.3").
	Version string

	// Commit is the Git commit hash from which the binary was built.
	Commit string

	// Date is the build timestamp in human-readable format.
	Date string
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		IntervalMs:  DefaultIntervalMs,
		APIPort:     DefaultAPIPort,
		PortRetries: DefaultPortRetries,
		MaxRetries:  DefaultMaxRetries,
		Ref:         constants.DefaultJournalRef,
		NotesRef:    constants.NotesRef,
		AuthorName:  constants.DefaultAuthorName,
		AuthorEmail: constants.DefaultAuthorEmail,
		Verbose:     true,

		VersionInfo: VersionInfo{
			Version: "dev",
			Commit:  "unknown",
			Date:    "unknown",
		},
	}
}

// Interval returns the debounce window as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// SetupFlags registers the command-line flags on fs, using the current
// values as defaults.
func (c *Config) SetupFlags(fs *pflag.FlagSet) {
	fs.IntP("interval", "i", c.IntervalMs, "Debounce window in milliseconds")
	fs.StringSlice("ignore", c.Ignore, "Comma-separated glob patterns to ignore (e.g. 'dist/**,*.tmp')")
	fs.Int("api-port", c.APIPort, "First port tried for the event endpoint")
	fs.String("repo", c.RepoPath, "Path to repository (default: current directory)")
	fs.String("ref", c.Ref, "Branch that receives journal commits")
	fs.String("notes-ref", c.NotesRef, "Notes ref for commit metadata")
	fs.String("author-name", c.AuthorName, "Author name for journal commits")
	fs.String("author-email", c.AuthorEmail, "Author email for journal commits")
	fs.Int("port-retries", c.PortRetries, "Sequential ports to try before giving up")
	fs.Int("max-retries", c.MaxRetries, "Identical write failures before warning (0 = never warn)")
	fs.BoolP("quiet", "q", !c.Verbose, "Hide informational messages")
	fs.Bool("debug", c.Debug, "Enable debug logging")
	fs.String("log-file", c.LogFile, "Path to log file (default: ~/.local/share/gitjournal/logs/gitjournal-{repo-hash}.log)")
	fs.String("config", c.ConfigFile, "Read settings from a YAML, TOML or JSON file")
}

// Load layers environment variables and the config file under the flags
// registered by SetupFlags and copies the result into c.
func (c *Config) Load(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return journalErrors.NewConfigError("flags", nil, journalErrors.Wrap(journalErrors.ErrInvalidFlag, err.Error()))
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return journalErrors.NewConfigError("config", file,
				journalErrors.Wrap(journalErrors.ErrInvalidConfiguration, err.Error()))
		}
		c.ConfigFile = file
	}

	c.IntervalMs = v.GetInt("interval")
	c.Ignore = splitPatterns(v.GetStringSlice("ignore"))
	c.APIPort = v.GetInt("api-port")
	c.RepoPath = v.GetString("repo")
	c.Ref = v.GetString("ref")
	c.NotesRef = v.GetString("notes-ref")
	c.AuthorName = v.GetString("author-name")
	c.AuthorEmail = v.GetString("author-email")
	c.PortRetries = v.GetInt("port-retries")
	c.MaxRetries = v.GetInt("max-retries")
	c.Verbose = !v.GetBool("quiet")
	c.Debug = v.GetBool("debug")
	c.LogFile = v.GetString("log-file")

	return nil
}

// PrintUsage prints a formatted help message with examples and grouped flags
func (c *Config) PrintUsage(fs *pflag.FlagSet, w io.Writer) {
	programName := filepath.Base(os.Args[0])

	_, _ = fmt.Fprintf(w, "gitjournal: %s\n\n", constants.Tagline)
	_, _ = fmt.Fprintf(w, "Usage: %s [options]\n\n", programName)
	_, _ = fmt.Fprintf(w, "gitjournal watches a working tree and records debounced snapshot commits\n")
	_, _ = fmt.Fprintf(w, "on a dedicated branch, leaving your own branch, index and files untouched.\n")
	_, _ = fmt.Fprintf(w, "Tools can attach events to the next snapshot with POST /log_event.\n\n")

	_, _ = fmt.Fprintf(w, "Examples:\n")
	_, _ = fmt.Fprintf(w, "  %s                                  # Run with defaults (4 second window)\n", programName)
	_, _ = fmt.Fprintf(w, "  %s -i 1000                          # Commit at most once a second\n", programName)
	_, _ = fmt.Fprintf(w, "  %s --ignore 'dist/**,*.tmp'         # Skip build output and temp files\n", programName)
	_, _ = fmt.Fprintf(w, "  %s --api-port 4000 --ref scratch    # Custom port and journal branch\n\n", programName)

	_, _ = fmt.Fprintf(w, "Core Options:\n")
	printFlagIfExists(w, fs, "interval")
	printFlagIfExists(w, fs, "ignore")
	printFlagIfExists(w, fs, "repo")
	printFlagIfExists(w, fs, "ref")
	printFlagIfExists(w, fs, "notes-ref")
	printFlagIfExists(w, fs, "author-name")
	printFlagIfExists(w, fs, "author-email")
	printFlagIfExists(w, fs, "config")
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "Event Endpoint:\n")
	printFlagIfExists(w, fs, "api-port")
	printFlagIfExists(w, fs, "port-retries")
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "Output Options:\n")
	printFlagIfExists(w, fs, "quiet")
	printFlagIfExists(w, fs, "debug")
	printFlagIfExists(w, fs, "log-file")
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "Error Handling:\n")
	printFlagIfExists(w, fs, "max-retries")
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "Information:\n")
	printFlagIfExists(w, fs, "version")
	printFlagIfExists(w, fs, "help")
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "Environment variables:\n")
	_, _ = fmt.Fprintf(w, "  Every option can be set as %s_<NAME>, e.g. %s_INTERVAL=2000\n", constants.EnvPrefix, constants.EnvPrefix)
	_, _ = fmt.Fprintf(w, "  or %s_API_PORT=4000. Flags win over the environment, which wins\n", constants.EnvPrefix)
	_, _ = fmt.Fprintf(w, "  over the config file.\n")
}

// printFlagIfExists prints a flag's usage if it exists in the FlagSet
func printFlagIfExists(w io.Writer, fs *pflag.FlagSet, name string) {
	f := fs.Lookup(name)
	if f == nil {
		return
	}

	defaultValue := f.DefValue
	if defaultValue == "[]" || defaultValue == "false" {
		defaultValue = ""
	}
	if defaultValue != "" {
		defaultValue = fmt.Sprintf(" (default: %s)", defaultValue)
	}

	if f.Shorthand != "" {
		_, _ = fmt.Fprintf(w, "  -%s, --%s%s: %s\n", f.Shorthand, f.Name, defaultValue, f.Usage)
		return
	}
	_, _ = fmt.Fprintf(w, "      --%s%s: %s\n", f.Name, defaultValue, f.Usage)
}

// Finalize validates and finalizes the configuration
func (c *Config) Finalize() error {
	if c.IntervalMs <= 0 {
		return invalid("interval", c.IntervalMs, "must be greater than 0")
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return invalid("api-port", c.APIPort, "must be between 0 and 65535")
	}
	if c.PortRetries < 1 {
		return invalid("port-retries", c.PortRetries, "must be at least 1")
	}
	if c.APIPort > 0 && c.APIPort+c.PortRetries-1 > 65535 {
		return invalid("port-retries", c.PortRetries, "port range runs past 65535")
	}
	if c.MaxRetries < 0 {
		return invalid("max-retries", c.MaxRetries, "cannot be negative")
	}
	if strings.TrimSpace(c.AuthorName) == "" {
		return invalid("author-name", c.AuthorName, "must not be empty")
	}
	if strings.TrimSpace(c.AuthorEmail) == "" {
		return invalid("author-email", c.AuthorEmail, "must not be empty")
	}

	c.Ref = expandRef(c.Ref, "refs/heads/")
	c.NotesRef = expandRef(c.NotesRef, "refs/notes/")
	if c.Ref == "" {
		return invalid("ref", c.Ref, "must not be empty")
	}
	if c.NotesRef == "" {
		return invalid("notes-ref", c.NotesRef, "must not be empty")
	}
	if c.Ref == c.NotesRef {
		return invalid("notes-ref", c.NotesRef, "must differ from the journal ref")
	}

	c.Ignore = splitPatterns(c.Ignore)

	if c.RepoPath == "" {
		var err error
		c.RepoPath, err = os.Getwd()
		if err != nil {
			return journalErrors.NewConfigError("repo", "", journalErrors.Wrap(err, "failed to get current directory"))
		}
	}

	absRepoPath, err := filepath.Abs(c.RepoPath)
	if err != nil {
		return journalErrors.NewConfigError("repo", c.RepoPath, journalErrors.Wrap(err, "failed to resolve absolute path"))
	}
	c.RepoPath = absRepoPath

	if c.LogFile == "" {
		c.LogFile = defaultLogFile(c.RepoPath)
	}

	return nil
}

func invalid(parameter string, value interface{}, reason string) error {
	return journalErrors.NewConfigError(parameter, value,
		journalErrors.Wrap(journalErrors.ErrInvalidConfiguration, reason))
}

// defaultLogFile follows the XDG Base Directory layout, one file per
// repository.
func defaultLogFile(repoPath string) string {
	logDir := os.Getenv("XDG_DATA_HOME")
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			logDir = filepath.Join(homeDir, ".local", "share")
		} else {
			logDir = os.TempDir()
		}
	}

	repoHash := fmt.Sprintf("%x", sha256OfString(repoPath)[:8])
	return filepath.Join(logDir, constants.AppName, "logs", fmt.Sprintf("%s-%s.log", constants.AppName, repoHash))
}

// expandRef turns a short name into a full ref under prefix.
func expandRef(name, prefix string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "refs/") {
		return name
	}
	return prefix + name
}

// splitPatterns flattens comma-separated entries. Environment variables
// arrive as a single string and config files as a list.
func splitPatterns(values []string) []string {
	var patterns []string
	for _, value := range values {
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
	}
	return patterns
}

// sha256OfString returns the SHA256 hash of a string
func sha256OfString(input string) []byte {
	hash := sha256.Sum256([]byte(input))
	return hash[:]
}
