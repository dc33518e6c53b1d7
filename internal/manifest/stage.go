package manifest

import (
	"context"
	"strings"

	"log/slog"

	"derush/internal/config"
	"derush/internal/logging"
	"derush/internal/queue"
	"derush/internal/services"
	"derush/internal/stage"
)

// Stage resolves a share URL into the manifest of chunk URLs the fetch stage
// downloads.
type Stage struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	resolver *Resolver
}

// NewStage constructs the resolving stage handler using default dependencies.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	return NewStageWithResolver(cfg, store, logger, NewResolver(cfg))
}

// NewStageWithResolver allows injecting the resolver (used in tests).
func NewStageWithResolver(cfg *config.Config, store *queue.Store, logger *slog.Logger, resolver *Resolver) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "resolver"))
	}
	return &Stage{cfg: cfg, store: store, logger: stageLogger, resolver: resolver}
}

func (s *Stage) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Resolving", "Locating stream manifests", 0)
	item.ErrorMessage = ""
	if strings.TrimSpace(item.SourceURL) == "" {
		return services.Wrap(services.ErrResolution, "resolving", "validate inputs",
			"Queue item has no source URL", nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("resolving source", logging.String("source_url", item.SourceURL))

	if _, err := stage.EnsureScratchDir(s.cfg, item); err != nil {
		return err
	}

	resolved, err := s.resolver.Resolve(ctx, item.SourceURL)
	if err != nil {
		return services.Wrap(services.ErrResolution, "resolving", "resolve manifests",
			"Could not resolve stream manifests for source", err)
	}

	encoded, err := resolved.Encode()
	if err != nil {
		return services.Wrap(services.ErrResolution, "resolving", "persist manifest",
			"Could not serialize resolved manifest", err)
	}
	item.ManifestJSON = encoded
	item.SetProgress("Resolving", "Manifests resolved", 100)

	logger.Info("resolved source",
		logging.Int("bandwidth", resolved.Bandwidth),
		logging.Int("video_segments", len(resolved.Video.Segments)),
		logging.Int("audio_segments", len(resolved.Audio.Segments)),
		logging.Float64("video_duration_sec", resolved.Video.Duration()),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.resolver == nil {
		return stage.Unavailable("resolver", "no resolver configured")
	}
	return stage.Available("resolver")
}
