package main

import (
	"testing"
	"time"

	"derush/internal/queue"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":       "Pending",
		"concatenating": "Concatenating",
		"":              "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildQueueListRowsOrdersNewestFirst(t *testing.T) {
	older := &queue.Item{ID: 1, Title: "older", Status: queue.StatusPending, CreatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	newer := &queue.Item{ID: 2, Title: "newer", Status: queue.StatusCompleted, CreatedAt: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}

	rows := buildQueueListRows([]*queue.Item{older, newer})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "newer" || rows[1][1] != "older" {
		t.Fatalf("unexpected ordering: %v", rows)
	}
}

func TestFormatItemProgress(t *testing.T) {
	failed := &queue.Item{Status: queue.StatusFailed, ErrorMessage: "muxing: combine streams failed"}
	if got := formatItemProgress(failed); got != "muxing: combine streams failed" {
		t.Fatalf("unexpected failed progress: %q", got)
	}

	active := &queue.Item{Status: queue.StatusFetching, ProgressStage: "fetching", ProgressPercent: 40}
	if got := formatItemProgress(active); got != "fetching 40%" {
		t.Fatalf("unexpected active progress: %q", got)
	}

	idle := &queue.Item{Status: queue.StatusPending}
	if got := formatItemProgress(idle); got != "-" {
		t.Fatalf("unexpected idle progress: %q", got)
	}
}
