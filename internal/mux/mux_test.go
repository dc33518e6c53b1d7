package mux_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"derush/internal/logging"
	"derush/internal/media/ffprobe"
	"derush/internal/mux"
	"derush/internal/queue"
	"derush/internal/services"
	"derush/internal/testsupport"
)

func fetchedItem(t *testing.T, store *queue.Store, base string) *queue.Item {
	t.Helper()
	item := testsupport.NewRemote(t, store, "https://share.example.com/share/muxme")
	item.ScratchDir = filepath.Join(base, "scratch", "muxme")
	item.VideoStreamPath = filepath.Join(item.ScratchDir, "video.ts")
	item.AudioStreamPath = filepath.Join(item.ScratchDir, "audio.ts")
	testsupport.WriteFile(t, item.VideoStreamPath, 64)
	testsupport.WriteFile(t, item.AudioStreamPath, 64)
	return item
}

func TestPrepareRequiresStreamPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := mux.NewStageWithEngine(cfg, store, logging.NewNop(), testsupport.NewFakeEngine(120))

	item := testsupport.NewRemote(t, store, "https://share.example.com/share/x")
	if err := handler.Prepare(context.Background(), item); !errors.Is(err, services.ErrMux) {
		t.Fatalf("expected mux error, got %v", err)
	}
}

func TestExecuteMuxesAndRemovesStreams(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := testsupport.NewFakeEngine(120)
	handler := mux.NewStageWithEngine(cfg, store, logging.NewNop(), engine)

	item := fetchedItem(t, store, testsupport.BaseDir(cfg))
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if item.MuxedPath == "" {
		t.Fatal("expected muxed path to be set")
	}
	if _, err := os.Stat(item.MuxedPath); err != nil {
		t.Fatalf("expected muxed file: %v", err)
	}
	for _, path := range []string{item.VideoStreamPath, item.AudioStreamPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected stream file %s removed", path)
		}
	}
	var muxed bool
	for _, call := range engine.Calls() {
		if strings.HasPrefix(call, "mux ") {
			muxed = true
		}
	}
	if !muxed {
		t.Fatal("expected engine mux call")
	}
}

func TestExecuteRejectsDesyncedTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Silence.DurationSkewSec = 1.0
	store := testsupport.MustOpenStore(t, cfg)
	engine := testsupport.NewFakeEngine(120)
	engine.ProbeFunc = func(ctx context.Context, path string) (ffprobe.Result, error) {
		duration := "120.0"
		if strings.Contains(path, "audio") {
			duration = "90.0"
		}
		return ffprobe.Result{Format: ffprobe.Format{Duration: duration}}, nil
	}
	handler := mux.NewStageWithEngine(cfg, store, logging.NewNop(), engine)

	item := fetchedItem(t, store, testsupport.BaseDir(cfg))
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrMux) {
		t.Fatalf("expected mux error for desync, got %v", err)
	}
	if !strings.Contains(err.Error(), "desynced") {
		t.Fatalf("expected desync detail, got %v", err)
	}
}

func TestExecuteDownloadOnlyCompletesItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := testsupport.NewFakeEngine(120)
	handler := mux.NewStageWithEngine(cfg, store, logging.NewNop(), engine)

	item := fetchedItem(t, store, testsupport.BaseDir(cfg))
	item.DownloadOnly = true
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if item.Status != queue.StatusCompleted {
		t.Fatalf("expected completed item, got %s", item.Status)
	}
	wantOutput := filepath.Join(cfg.Paths.OutputDir, item.Title+".mp4")
	if item.OutputPath != wantOutput {
		t.Fatalf("unexpected output path %q", item.OutputPath)
	}
	if _, err := os.Stat(wantOutput); err != nil {
		t.Fatalf("expected delivered output: %v", err)
	}
	if item.ScratchDir != "" {
		t.Fatal("expected scratch cleanup for completed download")
	}
}
