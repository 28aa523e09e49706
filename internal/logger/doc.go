// Package logger provides logging facilities for the gitjournal daemon.
//
// The package defines the Logger interface used throughout the application and
// DefaultLogger, its logrus-backed implementation. Messages fall in two groups:
//
//   - Info, Warning, Error: diagnostic entries written to the debug log.
//     Warnings are echoed to stdout in verbose mode, errors always go to stderr.
//   - InfoToUser, WarningToUser, Success, StatusMessage: messages for the person
//     (or parent process) running the daemon, written to stdout.
//
// # File Logging
//
// When debug logging is enabled, entries are written to a size-rotated file
// managed by lumberjack. If the file cannot be opened the logger falls back
// to stderr. Colours are only used when stderr is a terminal.
//
// # Usage
//
//	log := logger.New(cfg.Debug, cfg.LogFile, cfg.Verbose)
//	defer log.Close()
//
//	log.Info("staging %d paths", len(paths))
//	log.Success("Commit %s created", sha)
//
// # Thread Safety
//
// DefaultLogger is safe for concurrent use by multiple goroutines.
package logger
