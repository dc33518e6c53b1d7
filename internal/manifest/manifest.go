package manifest

import (
	"encoding/json"
	"fmt"
)

// SegmentRef is a fully resolved, ready-to-download chunk URL.
type SegmentRef struct {
	URL      string  `json:"url"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

// Track is one elementary stream's ordered chunk list.
type Track struct {
	PlaylistURL string       `json:"playlist_url"`
	Segments    []SegmentRef `json:"segments"`
}

// Duration returns the summed segment durations in seconds.
func (t Track) Duration() float64 {
	var total float64
	for _, seg := range t.Segments {
		total += seg.Duration
	}
	return total
}

// Manifest is the resolved download plan for one source: the chosen video
// variant and audio rendition with every chunk URL signed and absolute. It is
// persisted on the queue item between the resolving and fetching stages.
type Manifest struct {
	MasterURL string `json:"master_url"`
	Bandwidth int    `json:"bandwidth"`
	Video     Track  `json:"video"`
	Audio     Track  `json:"audio"`
}

// Encode serializes the manifest for queue persistence.
func (m Manifest) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	return string(data), nil
}

// Decode restores a manifest persisted by Encode.
func Decode(raw string) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
