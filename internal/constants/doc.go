// Package constants provides application-wide constant values for gitjournal.
//
// It centralizes the refs, identities and wire prefixes that several packages
// and external tools must agree on: the journal branch, the notes ref, the
// commit message prefix and the port announcement printed on startup.
package constants
