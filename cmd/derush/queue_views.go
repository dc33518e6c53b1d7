package main

import (
	"fmt"
	"sort"
	"strings"

	"derush/internal/queue"
)

func buildQueueListRows(items []*queue.Item) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]*queue.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			itemTitle(item),
			formatStatusLabel(string(item.Status)),
			formatItemProgress(item),
			item.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func buildQueueStatsRows(stats map[queue.Status]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for status := range stats {
		keys = append(keys, string(status))
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[queue.Status(key)])})
	}
	return rows
}

func itemTitle(item *queue.Item) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	if source := strings.TrimSpace(item.SourceURL); source != "" {
		return source
	}
	return strings.TrimSpace(item.SourcePath)
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatItemProgress(item *queue.Item) string {
	if item.Status == queue.StatusFailed {
		if msg := strings.TrimSpace(item.ErrorMessage); msg != "" {
			return truncate(msg, 48)
		}
		return "failed"
	}
	stage := strings.TrimSpace(item.ProgressStage)
	if stage == "" {
		return "-"
	}
	if item.ProgressPercent > 0 {
		return fmt.Sprintf("%s %.0f%%", stage, item.ProgressPercent)
	}
	return stage
}

func truncate(value string, limit int) string {
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
