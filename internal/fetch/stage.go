package fetch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"log/slog"

	"derush/internal/config"
	"derush/internal/logging"
	"derush/internal/manifest"
	"derush/internal/queue"
	"derush/internal/services"
	"derush/internal/stage"
)

// Stage downloads the resolved audio and video tracks into the item's
// scratch directory.
type Stage struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	fetcher *Fetcher
}

// NewStage constructs the fetching stage handler using default dependencies.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	resolver := manifest.NewResolver(cfg)
	return NewStageWithFetcher(cfg, store, logger, NewFetcher(cfg, resolver.Headers()))
}

// NewStageWithFetcher allows injecting the fetcher (used in tests).
func NewStageWithFetcher(cfg *config.Config, store *queue.Store, logger *slog.Logger, fetcher *Fetcher) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "fetcher"))
	}
	return &Stage{cfg: cfg, store: store, logger: stageLogger, fetcher: fetcher}
}

func (s *Stage) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Fetching", "Preparing chunk downloads", 0)
	item.ErrorMessage = ""
	if strings.TrimSpace(item.ManifestJSON) == "" {
		return services.Wrap(services.ErrFetch, "fetching", "validate inputs",
			"Queue item has no resolved manifest; rerun resolution", nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	resolved, err := manifest.Decode(item.ManifestJSON)
	if err != nil {
		return services.Wrap(services.ErrFetch, "fetching", "decode manifest",
			"Persisted manifest is unreadable; rerun resolution", err)
	}
	scratch, err := stage.EnsureScratchDir(s.cfg, item)
	if err != nil {
		return err
	}

	videoPath := filepath.Join(scratch, "video.ts")
	audioPath := filepath.Join(scratch, "audio.ts")
	logger.Info("fetching tracks",
		logging.Int("video_segments", len(resolved.Video.Segments)),
		logging.Int("audio_segments", len(resolved.Audio.Segments)),
		logging.Int("concurrency", s.cfg.HTTP.ChunkConcurrency),
	)

	// Both tracks download concurrently; the first failure cancels the
	// sibling through the shared context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(resolved.Video.Segments) + len(resolved.Audio.Segments)
	var mu sync.Mutex
	completed := 0
	progress := func(int, int) {
		mu.Lock()
		completed++
		item.SetProgress("Fetching", "Downloading chunks", float64(completed)/float64(total)*100)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	var videoErr, audioErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.fetcher.DownloadTrack(ctx, resolved.Video, videoPath, progress); err != nil {
			videoErr = err
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.fetcher.DownloadTrack(ctx, resolved.Audio, audioPath, progress); err != nil {
			audioErr = err
			cancel()
		}
	}()
	wg.Wait()

	if videoErr != nil {
		return services.Wrap(services.ErrFetch, "fetching", "download video track",
			"Video track download failed", videoErr)
	}
	if audioErr != nil {
		return services.Wrap(services.ErrFetch, "fetching", "download audio track",
			"Audio track download failed", audioErr)
	}

	item.VideoStreamPath = videoPath
	item.AudioStreamPath = audioPath
	item.SetProgress("Fetching", "Tracks downloaded", 100)
	logger.Info("fetched tracks",
		logging.String("video_path", videoPath),
		logging.String("audio_path", audioPath),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.fetcher == nil {
		return stage.Unavailable("fetcher", "no fetcher configured")
	}
	return stage.Available("fetcher")
}
