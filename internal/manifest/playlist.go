package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Variant is one video quality level advertised by a master playlist.
type Variant struct {
	URI        string
	Bandwidth  int
	Resolution string
	Codecs     string
}

// Rendition is an alternate media entry (EXT-X-MEDIA), typically the audio
// track that accompanies the video variants.
type Rendition struct {
	URI     string
	Type    string
	GroupID string
	Name    string
	Default bool
}

// MasterPlaylist holds the parsed contents of an HLS master playlist.
type MasterPlaylist struct {
	Variants   []Variant
	Renditions []Rendition
}

// Segment is one media chunk of a media playlist.
type Segment struct {
	URI      string
	Duration float64
}

// MediaPlaylist holds the parsed contents of an HLS media playlist.
type MediaPlaylist struct {
	TargetDuration float64
	Segments       []Segment
}

// ParseMaster decodes a master playlist. EXT-X-STREAM-INF tags pair with the
// URI on the following line; EXT-X-MEDIA tags carry their URI as an attribute.
func ParseMaster(body string) (MasterPlaylist, error) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	var master MasterPlaylist
	var pending *Variant
	sawHeader := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "#EXTM3U":
			sawHeader = true
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			variant := Variant{
				Resolution: attrs["RESOLUTION"],
				Codecs:     attrs["CODECS"],
			}
			if raw := attrs["BANDWIDTH"]; raw != "" {
				bandwidth, err := strconv.Atoi(raw)
				if err != nil {
					return MasterPlaylist{}, fmt.Errorf("invalid BANDWIDTH %q: %w", raw, err)
				}
				variant.Bandwidth = bandwidth
			}
			pending = &variant
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			master.Renditions = append(master.Renditions, Rendition{
				URI:     attrs["URI"],
				Type:    attrs["TYPE"],
				GroupID: attrs["GROUP-ID"],
				Name:    attrs["NAME"],
				Default: strings.EqualFold(attrs["DEFAULT"], "YES"),
			})
		case strings.HasPrefix(line, "#"):
			// Other tags are irrelevant for track selection.
		default:
			if pending == nil {
				continue
			}
			pending.URI = line
			master.Variants = append(master.Variants, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return MasterPlaylist{}, fmt.Errorf("scan master playlist: %w", err)
	}
	if !sawHeader {
		return MasterPlaylist{}, errors.New("missing #EXTM3U header")
	}
	return master, nil
}

// ParseMedia decodes a media playlist into its ordered segments.
func ParseMedia(body string) (MediaPlaylist, error) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	var playlist MediaPlaylist
	var pendingDuration float64
	sawHeader := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "#EXTM3U":
			sawHeader = true
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			raw := strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")
			if duration, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				playlist.TargetDuration = duration
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			duration, err := parseSegmentDuration(line)
			if err != nil {
				return MediaPlaylist{}, err
			}
			pendingDuration = duration
		case strings.HasPrefix(line, "#"):
			// Skip remaining tags.
		default:
			playlist.Segments = append(playlist.Segments, Segment{
				URI:      line,
				Duration: pendingDuration,
			})
			pendingDuration = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return MediaPlaylist{}, fmt.Errorf("scan media playlist: %w", err)
	}
	if !sawHeader {
		return MediaPlaylist{}, errors.New("missing #EXTM3U header")
	}
	return playlist, nil
}

func parseSegmentDuration(line string) (float64, error) {
	value := strings.TrimPrefix(line, "#EXTINF:")
	if comma := strings.IndexByte(value, ','); comma >= 0 {
		value = value[:comma]
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("missing EXTINF duration")
	}
	duration, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid EXTINF duration %q: %w", value, err)
	}
	return duration, nil
}

// parseAttributes splits an HLS attribute list, honoring quoted values that
// may contain commas (CODECS is the usual offender).
func parseAttributes(list string) map[string]string {
	attrs := make(map[string]string)
	var key strings.Builder
	var value strings.Builder
	inValue := false
	inQuotes := false

	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			attrs[k] = value.String()
		}
		key.Reset()
		value.Reset()
		inValue = false
	}

	for _, r := range list {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '=' && !inValue:
			inValue = true
		case r == ',' && !inQuotes:
			flush()
		case inValue:
			value.WriteRune(r)
		default:
			key.WriteRune(r)
		}
	}
	flush()
	return attrs
}
