package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"derush/internal/config"
	"derush/internal/manifest"
)

// ChunkError reports a chunk download that exhausted its retries, identified
// by its index in the track.
type ChunkError struct {
	Index int
	URL   string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Fetcher downloads the chunks of a resolved track with bounded concurrency
// and assembles them in playlist order.
type Fetcher struct {
	client      *http.Client
	headers     http.Header
	concurrency int
	retries     int
	backoff     time.Duration
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithClient overrides the HTTP client (used in tests).
func WithClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// NewFetcher builds a fetcher from the HTTP configuration section. The
// headers carry the signing cookie and referer established at resolution.
func NewFetcher(cfg *config.Config, headers http.Header, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: cfg.RequestTimeout()},
		headers:     headers,
		concurrency: cfg.HTTP.ChunkConcurrency,
		retries:     cfg.HTTP.ChunkRetries,
		backoff:     cfg.RetryBackoff(),
	}
	if f.concurrency < 1 {
		f.concurrency = 1
	}
	if f.retries < 1 {
		f.retries = 1
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DownloadTrack fetches every chunk of the track concurrently, then writes
// them to outputPath in playlist order. Chunk bytes land at their playlist
// index regardless of completion order, so the assembled stream is always
// in order. The first chunk failure cancels the remaining downloads.
func (f *Fetcher) DownloadTrack(ctx context.Context, track manifest.Track, outputPath string, progress func(done, total int)) error {
	total := len(track.Segments)
	if total == 0 {
		return fmt.Errorf("track %s has no segments", track.PlaylistURL)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]byte, total)
	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	done := 0

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, seg := range track.Segments {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(index int, seg manifest.SegmentRef) {
			defer wg.Done()
			defer func() { <-sem }()

			data, err := f.downloadChunk(ctx, seg.URL)
			if err != nil {
				fail(&ChunkError{Index: index, URL: seg.URL, Err: err})
				return
			}
			mu.Lock()
			results[index] = data
			done++
			completed := done
			mu.Unlock()
			if progress != nil {
				progress(completed, total)
			}
		}(i, seg)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, data := range results {
		if data == nil {
			return &ChunkError{Index: i, URL: track.Segments[i].URL, Err: fmt.Errorf("chunk missing after download pass")}
		}
	}
	return assemble(results, outputPath)
}

// downloadChunk fetches one chunk with per-chunk retries and doubling backoff.
func (f *Fetcher) downloadChunk(ctx context.Context, chunkURL string) ([]byte, error) {
	backoff := f.backoff
	var lastErr error
	for attempt := 0; attempt < f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
		data, err := f.fetchOnce(ctx, chunkURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", f.retries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, chunkURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chunkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.headers != nil {
		req.Header = f.headers.Clone()
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// assemble concatenates the downloaded chunks into a single stream file. The
// transport segments are MPEG-TS, which concatenate by simple byte append.
func assemble(chunks [][]byte, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	for _, chunk := range chunks {
		if _, err := out.Write(chunk); err != nil {
			out.Close()
			return fmt.Errorf("write %s: %w", outputPath, err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outputPath, err)
	}
	return nil
}
