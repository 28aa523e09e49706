// Package watcher reports file additions, modifications and deletions under
// a directory tree using fsnotify.
//
// The .git directory is always excluded, as is anything matched by the
// caller's ignore globs (github.com/moby/patternmatcher syntax). Watches
// are registered recursively at Start and extended as new directories
// appear; files that already exist at Start are not reported. Directories
// themselves never produce changes.
package watcher
