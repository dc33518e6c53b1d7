package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"derush/internal/config"
	"derush/internal/logging"
)

// resolveLogFormat maps the configured "auto" format to console on an
// interactive terminal and json otherwise.
func resolveLogFormat(cfg *config.Config) string {
	format := cfg.Logging.Format
	if format != "" && format != "auto" {
		return format
	}
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "console"
	}
	return "json"
}

// newRunLogger builds the logger for a one-shot run: console or json on
// stdout plus a persistent log file under the configured log directory.
func newRunLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      resolveLogFormat(cfg),
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "derush.log")},
	})
}
