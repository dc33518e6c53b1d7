package queue_test

import (
	"context"
	"fmt"
	"testing"

	"derush/internal/queue"
	"derush/internal/testsupport"
)

func TestOpenCreatesSchemaAndInserts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewRemote(ctx, "https://share.example.com/share/abc123", false)
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.Title != "abc123" {
		t.Fatalf("unexpected derived title %q", item.Title)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourceURL != item.SourceURL {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}
}

func TestNewRemoteRequiresURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.NewRemote(context.Background(), "   ", false); err == nil {
		t.Fatal("expected error when source URL missing")
	}
}

func TestNewLocalFileStartsAtMuxed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item, err := store.NewLocalFile(context.Background(), "/media/talks/keynote raw.mp4")
	if err != nil {
		t.Fatalf("NewLocalFile failed: %v", err)
	}
	if item.Status != queue.StatusMuxed {
		t.Fatalf("expected muxed status, got %s", item.Status)
	}
	if item.MuxedPath != "/media/talks/keynote raw.mp4" {
		t.Fatalf("expected muxed path to match source, got %q", item.MuxedPath)
	}
	if item.Title != "keynote-raw" {
		t.Fatalf("unexpected derived title %q", item.Title)
	}
}

func TestUpdateRoundTripsAllFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewRemote(t, store, "https://share.example.com/share/roundtrip")
	item.Status = queue.StatusAnalyzed
	item.ScratchDir = "/tmp/scratch/roundtrip"
	item.ManifestJSON = `{"variant":"v1"}`
	item.AudioStreamPath = "/tmp/scratch/roundtrip/audio.mp4"
	item.VideoStreamPath = "/tmp/scratch/roundtrip/video.mp4"
	item.MuxedPath = "/tmp/scratch/roundtrip/muxed.mp4"
	item.SilenceJSON = `[{"start":1,"end":2}]`
	item.SetProgress("Analyzing", "scanning audio", 42.5)
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusAnalyzed {
		t.Fatalf("expected analyzed, got %s", fetched.Status)
	}
	if fetched.SilenceJSON != item.SilenceJSON {
		t.Fatalf("silence JSON lost: %q", fetched.SilenceJSON)
	}
	if fetched.ProgressStage != "Analyzing" || fetched.ProgressPercent != 42.5 {
		t.Fatalf("progress lost: %q %.1f", fetched.ProgressStage, fetched.ProgressPercent)
	}
	if fetched.UpdatedAt.Before(fetched.CreatedAt) {
		t.Fatal("expected updated_at to advance past created_at")
	}
}

func TestGetByIDReturnsNilForMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item, err := store.GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil item, got %#v", item)
	}
}

func TestClaimNextTransitionsOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewRemote(t, store, "https://share.example.com/share/first")
	testsupport.NewRemote(t, store, "https://share.example.com/share/second")

	claimed, err := store.ClaimNext(ctx, queue.Transition{From: queue.StatusPending, To: queue.StatusResolving})
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected an item to be claimed")
	}
	if claimed.ID != first.ID {
		t.Fatalf("expected oldest item %d, claimed %d", first.ID, claimed.ID)
	}
	if claimed.Status != queue.StatusResolving {
		t.Fatalf("expected resolving after claim, got %s", claimed.Status)
	}

	persisted, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if persisted.Status != queue.StatusResolving {
		t.Fatalf("claim not persisted, status %s", persisted.Status)
	}
}

func TestClaimNextReturnsNilWhenNothingReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	claimed, err := store.ClaimNext(context.Background(), queue.Transition{From: queue.StatusFetched, To: queue.StatusMuxing})
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected no claim, got %#v", claimed)
	}
}

func TestResetStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"resolving", queue.StatusResolving, queue.StatusPending},
		{"fetching", queue.StatusFetching, queue.StatusResolved},
		{"muxing", queue.StatusMuxing, queue.StatusFetched},
		{"analyzing", queue.StatusAnalyzing, queue.StatusMuxed},
		{"cutting", queue.StatusCutting, queue.StatusAnalyzed},
		{"concatenating", queue.StatusConcatenating, queue.StatusCut},
	}
	var ids []int64
	for i, tc := range cases {
		item, err := store.NewRemote(ctx, fmt.Sprintf("https://share.example.com/share/reset-%d", i), false)
		if err != nil {
			t.Fatalf("NewRemote failed: %v", err)
		}
		item.Status = tc.initialStatus
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	reset, err := store.ResetStaleProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStaleProcessing failed: %v", err)
	}
	if reset != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), reset)
	}
	for i, tc := range cases {
		item, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item.Status != tc.expected {
			t.Fatalf("%s: expected rollback to %s, got %s", tc.name, tc.expected, item.Status)
		}
	}
}

func TestRetryInfersRestartStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewRemote(t, store, "https://share.example.com/share/retry")
	item.MuxedPath = "/tmp/scratch/retry/muxed.mp4"
	item.SetFailed("analysis exploded")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retried, err := store.Retry(ctx, item.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried.Status != queue.StatusMuxed {
		t.Fatalf("expected restart from muxed, got %s", retried.Status)
	}
	if retried.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", retried.ErrorMessage)
	}
}

func TestRetryRejectsNonFailedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewRemote(t, store, "https://share.example.com/share/active")
	if _, err := store.Retry(context.Background(), item.ID); err == nil {
		t.Fatal("expected error retrying a non-failed item")
	}
}

func TestClearRemovesTerminalItemsOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	active := testsupport.NewRemote(t, store, "https://share.example.com/share/active")
	done := testsupport.NewRemote(t, store, "https://share.example.com/share/done")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := store.Clear(ctx, false)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 item cleared, got %d", removed)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != active.ID {
		t.Fatalf("expected only active item to remain, got %#v", remaining)
	}

	removed, err = store.Clear(ctx, true)
	if err != nil {
		t.Fatalf("Clear all failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected remaining item cleared, got %d", removed)
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRemote(t, store, "https://share.example.com/share/one")
	testsupport.NewRemote(t, store, "https://share.example.com/share/two")
	failed := testsupport.NewRemote(t, store, "https://share.example.com/share/three")
	failed.SetFailed("boom")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 2 {
		t.Fatalf("expected 2 pending, got %d", stats[queue.StatusPending])
	}
	if stats[queue.StatusFailed] != 1 {
		t.Fatalf("expected 1 failed, got %d", stats[queue.StatusFailed])
	}
}

func TestTitleFromSource(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"https://share.example.com/share/My Talk (final).mp4?sig=abc", "My-Talk--final"},
		{"/home/user/videos/standup_2024.mov", "standup_2024"},
		{"   ", "video"},
		{"https://share.example.com/", "video"},
	}
	for _, tc := range cases {
		if got := queue.TitleFromSource(tc.source); got != tc.want {
			t.Errorf("TitleFromSource(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}
