// Package runner implements the one-shot formatter operations: format or
// check explicit files, whole trees, or stdin, with files grouped by their
// effective config so the formatter runs once per config.
package runner
