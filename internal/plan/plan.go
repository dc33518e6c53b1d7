// Package plan turns a silence analysis into the list of keep ranges the
// cutter extracts. Planning is pure arithmetic so the binding behavior is
// testable without media files.
package plan

import (
	"sort"

	"derush/internal/silence"
)

// Keeps computes the time ranges to retain from a source of the given
// duration. Each silence shrinks inward by padding so a breath of context
// survives around every cut; silences too short to survive the shrink are
// dropped entirely. The keeps are the complement of the merged shrunk
// silences over [0, duration], minus any fragment shorter than minKeep.
func Keeps(duration float64, silences []silence.Interval, padding, minKeep float64) []silence.Interval {
	if duration <= 0 {
		return nil
	}

	shrunk := make([]silence.Interval, 0, len(silences))
	for _, s := range silences {
		start := s.Start + padding
		end := s.End - padding
		if start < 0 {
			start = 0
		}
		if end > duration {
			end = duration
		}
		if end <= start {
			continue
		}
		shrunk = append(shrunk, silence.Interval{Start: start, End: end})
	}
	merged := merge(shrunk)

	keeps := make([]silence.Interval, 0, len(merged)+1)
	cursor := 0.0
	for _, s := range merged {
		if s.Start > cursor {
			keeps = append(keeps, silence.Interval{Start: cursor, End: s.Start})
		}
		if s.End > cursor {
			cursor = s.End
		}
	}
	if cursor < duration {
		keeps = append(keeps, silence.Interval{Start: cursor, End: duration})
	}

	filtered := keeps[:0]
	for _, k := range keeps {
		if k.Duration() >= minKeep {
			filtered = append(filtered, k)
		}
	}
	return filtered
}

// RemovedSeconds reports how much of the source the plan discards.
func RemovedSeconds(duration float64, keeps []silence.Interval) float64 {
	kept := 0.0
	for _, k := range keeps {
		kept += k.Duration()
	}
	return duration - kept
}

func merge(intervals []silence.Interval) []silence.Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]silence.Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []silence.Interval{sorted[0]}
	for _, interval := range sorted[1:] {
		last := &merged[len(merged)-1]
		if interval.Start <= last.End {
			if interval.End > last.End {
				last.End = interval.End
			}
			continue
		}
		merged = append(merged, interval)
	}
	return merged
}
