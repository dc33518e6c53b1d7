// Package logs provides file tailing helpers for the CLI.
//
// It reads the last N lines of a log file with bounded memory usage and
// powers follow-mode updates for `derush logs --follow`. Callers supply a
// context so background polling shuts down cleanly when the CLI exits.
package logs
