// Package nodemap derives logical node identifiers from repository paths.
//
// A node is named by the path segment immediately following a "nodes"
// directory component, so "nodes/alpha/file.txt" and
// "src/nodes/alpha/deep/file.txt" both belong to node "alpha".
package nodemap

import (
	"regexp"
	"strings"
)

var nodePattern = regexp.MustCompile(`(?:^|/)nodes/([^/]+)`)

// NodeForPath returns the node identifier for path, if it has one.
// Backslash separators are accepted.
func NodeForPath(path string) (string, bool) {
	match := nodePattern.FindStringSubmatch(strings.ReplaceAll(path, `\`, "/"))
	if match == nil {
		return "", false
	}
	return match[1], true
}
