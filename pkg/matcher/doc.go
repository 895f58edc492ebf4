// Package matcher routes file paths to formatter profiles.
//
// Routing is rule based: ordered glob rules match the file path, and optional
// ordered regex rules match the file content. The first matching rule wins.
// A content match overrides the path match, but only for files that already
// matched some path rule.
package matcher
