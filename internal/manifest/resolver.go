package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"derush/internal/config"
)

// masterURLPattern locates the signed HLS master playlist URL embedded in the
// share page's bootstrap script.
var masterURLPattern = regexp.MustCompile(`https://[^"]+?/resource/hls/playlist\.m3u8\?[^"]+`)

// Resolver turns a share-page URL into a Manifest: the chosen video variant
// and audio rendition with fully signed chunk URLs.
type Resolver struct {
	client             *http.Client
	userAgent          string
	referer            string
	cookie             string
	preferredBandwidth int
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// NewResolver builds a resolver from the HTTP configuration section.
func NewResolver(cfg *config.Config, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:             &http.Client{Timeout: cfg.RequestTimeout()},
		userAgent:          cfg.HTTP.UserAgent,
		referer:            cfg.HTTP.Referer,
		cookie:             cfg.HTTP.Cookie,
		preferredBandwidth: cfg.HTTP.PreferredBandwidth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Headers returns the request headers every call to the streaming host
// carries. The fetch stage reuses them for chunk downloads.
func (r *Resolver) Headers() http.Header {
	headers := http.Header{}
	headers.Set("User-Agent", r.userAgent)
	if r.referer != "" {
		headers.Set("Referer", r.referer)
	}
	if r.cookie != "" {
		headers.Set("Cookie", r.cookie)
	}
	return headers
}

// FindMasterURL downloads the share page and extracts the signed master
// playlist URL from its HTML.
func (r *Resolver) FindMasterURL(ctx context.Context, shareURL string) (string, error) {
	body, err := r.get(ctx, shareURL)
	if err != nil {
		return "", fmt.Errorf("fetch share page: %w", err)
	}
	match := masterURLPattern.FindString(body)
	if match == "" {
		return "", errors.New("share page does not reference an HLS master playlist; the video may be private (set http.cookie)")
	}
	return match, nil
}

// Resolve produces the complete download plan for a source. A URL that
// already points at a playlist skips the share-page scrape.
func (r *Resolver) Resolve(ctx context.Context, shareURL string) (*Manifest, error) {
	masterURL := strings.TrimSpace(shareURL)
	if !looksLikePlaylist(masterURL) {
		found, err := r.FindMasterURL(ctx, masterURL)
		if err != nil {
			return nil, err
		}
		masterURL = found
	}

	base, err := url.Parse(masterURL)
	if err != nil {
		return nil, fmt.Errorf("parse master URL: %w", err)
	}

	body, err := r.get(ctx, masterURL)
	if err != nil {
		return nil, fmt.Errorf("fetch master playlist: %w", err)
	}
	master, err := ParseMaster(body)
	if err != nil {
		return nil, fmt.Errorf("parse master playlist: %w", err)
	}

	variant, err := selectVariant(master, r.preferredBandwidth)
	if err != nil {
		return nil, err
	}
	rendition, err := selectAudioRendition(master)
	if err != nil {
		return nil, err
	}

	video, err := r.resolveTrack(ctx, base, variant.URI)
	if err != nil {
		return nil, fmt.Errorf("video track: %w", err)
	}
	audio, err := r.resolveTrack(ctx, base, rendition.URI)
	if err != nil {
		return nil, fmt.Errorf("audio track: %w", err)
	}

	return &Manifest{
		MasterURL: masterURL,
		Bandwidth: variant.Bandwidth,
		Video:     video,
		Audio:     audio,
	}, nil
}

// resolveTrack fetches one media playlist and expands its segments into
// absolute, signed URLs.
func (r *Resolver) resolveTrack(ctx context.Context, base *url.URL, uri string) (Track, error) {
	playlistURL, err := resolveURL(base, uri)
	if err != nil {
		return Track{}, err
	}
	body, err := r.get(ctx, playlistURL)
	if err != nil {
		return Track{}, fmt.Errorf("fetch media playlist: %w", err)
	}
	playlist, err := ParseMedia(body)
	if err != nil {
		return Track{}, fmt.Errorf("parse media playlist: %w", err)
	}
	if len(playlist.Segments) == 0 {
		return Track{}, errors.New("media playlist has no segments")
	}

	track := Track{PlaylistURL: playlistURL, Segments: make([]SegmentRef, 0, len(playlist.Segments))}
	for _, seg := range playlist.Segments {
		segURL, err := resolveURL(base, seg.URI)
		if err != nil {
			return Track{}, err
		}
		track.Segments = append(track.Segments, SegmentRef{
			URL:      segURL,
			Name:     segmentName(seg.URI),
			Duration: seg.Duration,
		})
	}
	return track, nil
}

func (r *Resolver) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header = r.Headers()

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %s", req.URL.Host, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(body), nil
}

// selectVariant picks the variant with the preferred bandwidth, falling back
// to the highest-bandwidth variant when the preference is unavailable.
func selectVariant(master MasterPlaylist, preferred int) (Variant, error) {
	if len(master.Variants) == 0 {
		return Variant{}, errors.New("master playlist advertises no video variants")
	}
	best := master.Variants[0]
	for _, variant := range master.Variants {
		if variant.Bandwidth == preferred {
			return variant, nil
		}
		if variant.Bandwidth > best.Bandwidth {
			best = variant
		}
	}
	return best, nil
}

// selectAudioRendition picks the default audio rendition, falling back to the
// first audio rendition when none is marked default.
func selectAudioRendition(master MasterPlaylist) (Rendition, error) {
	var first *Rendition
	for i, rendition := range master.Renditions {
		if !strings.EqualFold(rendition.Type, "AUDIO") || rendition.URI == "" {
			continue
		}
		if rendition.Default {
			return rendition, nil
		}
		if first == nil {
			first = &master.Renditions[i]
		}
	}
	if first != nil {
		return *first, nil
	}
	return Rendition{}, errors.New("master playlist advertises no audio renditions")
}

// resolveURL makes uri absolute against the master playlist URL and carries
// the master's signing query over to URLs that lack their own.
func resolveURL(base *url.URL, uri string) (string, error) {
	resolved, err := base.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("resolve URI %q: %w", uri, err)
	}
	if resolved.RawQuery == "" {
		resolved.RawQuery = base.RawQuery
	}
	return resolved.String(), nil
}

func looksLikePlaylist(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(parsed.Path, ".m3u8")
}

func segmentName(uri string) string {
	if parsed, err := url.Parse(uri); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}
	return path.Base(uri)
}
