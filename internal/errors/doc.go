// Package errors provides error handling utilities for the gitjournal daemon.
//
// This package implements specialized error types and error handling functions
// to improve error management throughout the application. It focuses on
// providing rich context for errors while maintaining compatibility with
// the standard error handling practices.
//
// # Error Taxonomy
//
//   - ValidationError: a malformed or incomplete ingested event. Handled
//     entirely by the ingestion listener, which answers 400.
//   - GitError: a staging, commit or note failure. The journaler restores its
//     pending state and retries on the next debounce window.
//   - BindError: the ingestion listener could not acquire a port. Fatal.
//   - ConfigError and LockError: startup failures. Fatal.
//
// # Usage
//
// Basic error wrapping:
//
//	if err != nil {
//	    return errors.Wrap(err, "failed to open file")
//	}
//
// Sentinel checks:
//
//	if errors.Is(err, errors.ErrPortExhausted) {
//	    os.Exit(1)
//	}
//
// # Compatibility
//
// The package is fully compatible with the standard library errors package
// and can be used as a drop-in replacement with additional functionality.
package errors
