package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"derush/internal/config"
	"derush/internal/queue"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfg := &cfgVal

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &cliTestEnv{cfg: cfg, store: store, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func TestAddQueuesRemoteItem(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "add", "https://host.example/share/alpha")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued alpha as item #1")

	items, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Status != queue.StatusPending {
		t.Fatalf("unexpected queue contents: %#v", items)
	}
}

func TestAddRejectsNonURL(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "add", "/tmp/video.mp4")
	if err == nil || !strings.Contains(err.Error(), "http(s) URL") {
		t.Fatalf("expected URL validation error, got %v", err)
	}
}

func TestAddDownloadOnlyFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.configPath, "add", "--download-only", "https://host.example/share/beta"); err != nil {
		t.Fatalf("add --download-only: %v", err)
	}

	items, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || !items[0].DownloadOnly {
		t.Fatalf("expected download-only item, got %#v", items)
	}
}

func TestAddFileQueuesAtMuxed(t *testing.T) {
	env := setupCLITestEnv(t)

	videoPath := filepath.Join(env.baseDir, "Talk Recording.mp4")
	if err := os.WriteFile(videoPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "add-file", videoPath)
	if err != nil {
		t.Fatalf("add-file: %v", err)
	}
	requireContains(t, out, "Queued local file as item #1")

	items, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Status != queue.StatusMuxed {
		t.Fatalf("expected local file at muxed, got %#v", items)
	}
}

func TestAddFileRejectsUnsupportedExtension(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(env.baseDir, "notes.txt")
	if err := os.WriteFile(path, []byte("text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, _, err := runCLI(t, env.configPath, "add-file", path)
	if err == nil || !strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
}

func TestQueueListAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewRemote(ctx, "https://host.example/share/alpha", false); err != nil {
		t.Fatalf("alpha: %v", err)
	}
	beta, err := env.store.NewRemote(ctx, "https://host.example/share/beta", false)
	if err != nil {
		t.Fatalf("beta: %v", err)
	}
	beta.SetFailed("resolving: share page fetch failed")
	if err := env.store.Update(ctx, beta); err != nil {
		t.Fatalf("fail beta: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "alpha")
	requireContains(t, out, "beta")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, env.configPath, "queue", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("queue list --status: %v", err)
	}
	if strings.Contains(out, "alpha") {
		t.Fatalf("status filter leaked pending item:\n%s", out)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 finished items")

	out, _, err = runCLI(t, env.configPath, "queue", "clear", "--all")
	if err != nil {
		t.Fatalf("queue clear --all: %v", err)
	}
	requireContains(t, out, "Cleared 1 queue items")

	out, _, err = runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list after clear: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "queue", "list", "--status", "exploded")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestQueueRetryResetsFailedItems(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewRemote(ctx, "https://host.example/share/gamma", false)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	item.SetFailed("fetching: chunk 3 failed")
	if err := env.store.Update(ctx, item); err != nil {
		t.Fatalf("fail item: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "reset to pending")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry, got %s", updated.Status)
	}
}

func TestQueueRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewRemote(ctx, "https://host.example/share/delta", false)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "queue", "remove", "1")
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed item 1")

	got, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got != nil {
		t.Fatalf("expected item removed, got %#v", got)
	}
}

func TestStatusCommandReportsSections(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Configuration ==")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "== Queue ==")
	requireContains(t, out, "Queue is empty")
}

func TestConfigInitShowValidate(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "derush", "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}

	out, _, err = runCLI(t, target, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "[silence]")

	out, _, err = runCLI(t, target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestCleanRemovesAgedScratch(t *testing.T) {
	env := setupCLITestEnv(t)

	aged := filepath.Join(env.cfg.Paths.ScratchDir, "old-run")
	if err := os.MkdirAll(aged, 0o755); err != nil {
		t.Fatalf("mkdir aged: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(aged, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	fresh := filepath.Join(env.cfg.Paths.ScratchDir, "fresh-run")
	if err := os.MkdirAll(fresh, 0o755); err != nil {
		t.Fatalf("mkdir fresh: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "clean")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	requireContains(t, out, "Removed 1 scratch directories")

	if _, err := os.Stat(aged); !os.IsNotExist(err) {
		t.Fatalf("expected aged scratch removed, stat err %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh scratch kept: %v", err)
	}
}

func TestLogsPrintsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := filepath.Join(env.cfg.Paths.LogDir, "derushd.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "logs", "--lines", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "second")
	requireContains(t, out, "third")
	if strings.Contains(out, "first") {
		t.Fatalf("expected only trailing lines, got:\n%s", out)
	}
}

func TestDepsCommandWithStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t)

	binDir := filepath.Join(env.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", binDir)

	out, _, err := runCLI(t, env.configPath, "deps")
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "available")
}

func TestDepsCommandFailsWhenMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("PATH", t.TempDir())

	_, _, err := runCLI(t, env.configPath, "deps")
	if err == nil || !strings.Contains(err.Error(), "required tools are missing") {
		t.Fatalf("expected missing tools error, got %v", err)
	}
}
