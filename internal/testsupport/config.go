package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"derush/internal/config"
)

// ConfigOption mutates the generated test config before it is returned.
type ConfigOption func(testing.TB, *config.Config)

// NewConfig returns a default config rooted in a per-test temp directory,
// with a fast queue poll interval so workflow tests do not wait on timers.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Workflow.QueuePollInterval = 1

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// WithMaxActiveItems overrides worker concurrency on the test config.
func WithMaxActiveItems(n int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Workflow.MaxActiveItems = n
	}
}

// WithStubbedBinaries puts no-op ffmpeg and ffprobe executables (or the named
// binaries) on PATH for the duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(BaseDir(cfg), "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			stub := filepath.Join(binDir, name)
			if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			t.Fatalf("set PATH: %v", err)
		}
		t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the temp directory the config's paths live under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
