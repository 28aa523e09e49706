// Package config provides configuration management for gitjournal.
//
// Settings come from four layers, highest first: command-line flags,
// GITJOURNAL_* environment variables, an optional YAML, TOML or JSON config
// file named by --config, and the defaults returned by New. Flags are
// registered on a pflag.FlagSet by SetupFlags and merged by Load through
// viper; every key is the long flag name, so "api-port" in a config file
// and GITJOURNAL_API_PORT in the environment set the same value.
//
// Finalize validates the merged values and fills in derived ones: the
// absolute repository path, full ref names and the per-repository log file
// under $XDG_DATA_HOME/gitjournal/logs. Validation failures are returned as
// *errors.ConfigError wrapping errors.ErrInvalidConfiguration.
package config
