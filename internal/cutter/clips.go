package cutter

import (
	"encoding/json"
	"fmt"
)

// Clip is one extracted keep range on disk, ordered by Index.
type Clip struct {
	Index int     `json:"index"`
	Path  string  `json:"path"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// EncodeClips serializes the clip list for queue persistence.
func EncodeClips(clips []Clip) (string, error) {
	data, err := json.Marshal(clips)
	if err != nil {
		return "", fmt.Errorf("encode clips: %w", err)
	}
	return string(data), nil
}

// DecodeClips restores a clip list persisted by EncodeClips.
func DecodeClips(raw string) ([]Clip, error) {
	var clips []Clip
	if err := json.Unmarshal([]byte(raw), &clips); err != nil {
		return nil, fmt.Errorf("decode clips: %w", err)
	}
	return clips, nil
}
