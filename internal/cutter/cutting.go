package cutter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"derush/internal/config"
	"derush/internal/logging"
	"derush/internal/plan"
	"derush/internal/queue"
	"derush/internal/services"
	"derush/internal/services/ffmpeg"
	"derush/internal/silence"
	"derush/internal/stage"
)

// CuttingStage plans the keep ranges from the silence analysis and extracts
// each one into its own clip.
type CuttingStage struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	engine ffmpeg.Engine
}

// NewCuttingStage constructs the cutting stage handler using default dependencies.
func NewCuttingStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *CuttingStage {
	engine := ffmpeg.NewCLI(
		ffmpeg.WithBinaries(cfg.FFmpegBinary(), cfg.FFprobeBinary()),
		ffmpeg.WithTimeout(cfg.CommandTimeout()),
	)
	return NewCuttingStageWithEngine(cfg, store, logger, engine)
}

// NewCuttingStageWithEngine allows injecting the media engine (used in tests).
func NewCuttingStageWithEngine(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine ffmpeg.Engine) *CuttingStage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "cutter"))
	}
	return &CuttingStage{cfg: cfg, store: store, logger: stageLogger, engine: engine}
}

func (s *CuttingStage) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Cutting", "Planning keep ranges", 0)
	item.ErrorMessage = ""
	if strings.TrimSpace(item.MuxedPath) == "" {
		return services.Wrap(services.ErrCut, "cutting", "validate inputs",
			"Queue item has no muxed file; rerun muxing", nil)
	}
	if strings.TrimSpace(item.SilenceJSON) == "" {
		return services.Wrap(services.ErrCut, "cutting", "validate inputs",
			"Queue item has no silence analysis; rerun analysis", nil)
	}
	return nil
}

func (s *CuttingStage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	silenceCfg := s.cfg.Silence

	analysis, err := silence.DecodeAnalysis(item.SilenceJSON)
	if err != nil {
		return services.Wrap(services.ErrCut, "cutting", "decode analysis",
			"Persisted silence analysis is unreadable; rerun analysis", err)
	}

	keeps := plan.Keeps(
		analysis.DurationSeconds,
		analysis.Silences,
		float64(silenceCfg.PaddingMs)/1000,
		float64(silenceCfg.MinKeepMs)/1000,
	)
	if len(keeps) == 0 {
		return services.Wrap(services.ErrNoContent, "cutting", "plan keeps",
			"Source is silent end to end; nothing would remain after derushing", nil)
	}
	for _, keep := range keeps {
		if keep.Start < 0 || keep.End > analysis.DurationSeconds || keep.End <= keep.Start {
			return services.Wrap(services.ErrCut, "cutting", "plan keeps",
				fmt.Sprintf("Keep range [%.3f, %.3f] falls outside the source duration %.3fs",
					keep.Start, keep.End, analysis.DurationSeconds), nil)
		}
	}

	scratch, err := stage.EnsureScratchDir(s.cfg, item)
	if err != nil {
		return err
	}
	clipsDir := filepath.Join(scratch, "clips")

	logger.Info("extracting clips",
		logging.Int("keep_count", len(keeps)),
		logging.Float64("removed_sec", plan.RemovedSeconds(analysis.DurationSeconds, keeps)),
	)

	clips := make([]Clip, 0, len(keeps))
	for i, keep := range keeps {
		clipPath := filepath.Join(clipsDir, fmt.Sprintf("clip-%03d.mp4", i))
		item.SetProgress("Cutting",
			fmt.Sprintf("Extracting clip %d of %d", i+1, len(keeps)),
			float64(i)/float64(len(keeps))*100)
		if err := s.engine.ExtractRange(ctx, item.MuxedPath, keep.Start, keep.End, clipPath); err != nil {
			return services.Wrap(services.ErrCut, "cutting", "extract clip",
				fmt.Sprintf("Extraction of clip %d [%.3f, %.3f] failed", i, keep.Start, keep.End), err)
		}
		clips = append(clips, Clip{Index: i, Path: clipPath, Start: keep.Start, End: keep.End})
	}

	encoded, err := EncodeClips(clips)
	if err != nil {
		return services.Wrap(services.ErrCut, "cutting", "persist clips",
			"Could not serialize clip list", err)
	}
	item.ClipsJSON = encoded
	item.SetProgress("Cutting", "Clips extracted", 100)
	logger.Info("extracted clips", logging.Int("clip_count", len(clips)))
	return nil
}

func (s *CuttingStage) HealthCheck(ctx context.Context) stage.Health {
	if s.engine == nil {
		return stage.Unavailable("cutter", "no media engine configured")
	}
	return stage.Available("cutter")
}
