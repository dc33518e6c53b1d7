package silence

import (
	"encoding/json"
	"fmt"
	"math"
)

// Interval is a half-open time range [Start, End) in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the interval length in seconds.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Profile computes the windowed loudness profile of the samples in dBFS.
// Each entry is the RMS level of one window; a trailing partial window is
// measured too. Samples are expected in [-1, 1].
func Profile(samples []float64, sampleRate, windowMs int) []float64 {
	if len(samples) == 0 || sampleRate <= 0 || windowMs <= 0 {
		return nil
	}
	windowSize := sampleRate * windowMs / 1000
	if windowSize < 1 {
		windowSize = 1
	}
	profile := make([]float64, 0, len(samples)/windowSize+1)
	for offset := 0; offset < len(samples); offset += windowSize {
		end := offset + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		profile = append(profile, dbfs(samples[offset:end]))
	}
	return profile
}

func dbfs(window []float64) float64 {
	var sum float64
	for _, s := range window {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(window)))
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// Detect scans a loudness profile for silent passages: maximal runs of
// consecutive windows at or below noiseFloorDb lasting at least
// minSilenceSec. Interval bounds are clamped to totalDuration so the last
// partial window never extends past the source.
func Detect(profile []float64, windowSec, noiseFloorDb, minSilenceSec, totalDuration float64) []Interval {
	if len(profile) == 0 || windowSec <= 0 {
		return nil
	}
	var silences []Interval
	runStart := -1

	flush := func(endIndex int) {
		if runStart < 0 {
			return
		}
		interval := Interval{
			Start: float64(runStart) * windowSec,
			End:   float64(endIndex) * windowSec,
		}
		if totalDuration > 0 && interval.End > totalDuration {
			interval.End = totalDuration
		}
		if interval.Duration() >= minSilenceSec {
			silences = append(silences, interval)
		}
		runStart = -1
	}

	for i, level := range profile {
		if level <= noiseFloorDb {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(profile))
	return silences
}

// Analysis is the persisted result of the analyzing stage.
type Analysis struct {
	DurationSeconds float64    `json:"duration_seconds"`
	WindowSeconds   float64    `json:"window_seconds"`
	NoiseFloorDb    float64    `json:"noise_floor_db"`
	Silences        []Interval `json:"silences"`
}

// Encode serializes the analysis for queue persistence.
func (a Analysis) Encode() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	return string(data), nil
}

// DecodeAnalysis restores an analysis persisted by Encode.
func DecodeAnalysis(raw string) (Analysis, error) {
	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	return a, nil
}
