package mux

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"derush/internal/config"
	"derush/internal/fileutil"
	"derush/internal/logging"
	"derush/internal/queue"
	"derush/internal/services"
	"derush/internal/services/ffmpeg"
	"derush/internal/stage"
)

// Stage combines the fetched audio and video streams into one container.
// Download-only items finish here: the muxed file moves straight to the
// output directory and the item completes.
type Stage struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	engine ffmpeg.Engine
}

// NewStage constructs the muxing stage handler using default dependencies.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	engine := ffmpeg.NewCLI(
		ffmpeg.WithBinaries(cfg.FFmpegBinary(), cfg.FFprobeBinary()),
		ffmpeg.WithTimeout(cfg.CommandTimeout()),
	)
	return NewStageWithEngine(cfg, store, logger, engine)
}

// NewStageWithEngine allows injecting the media engine (used in tests).
func NewStageWithEngine(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine ffmpeg.Engine) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "muxer"))
	}
	return &Stage{cfg: cfg, store: store, logger: stageLogger, engine: engine}
}

func (s *Stage) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Muxing", "Preparing stream combination", 0)
	item.ErrorMessage = ""
	if strings.TrimSpace(item.VideoStreamPath) == "" || strings.TrimSpace(item.AudioStreamPath) == "" {
		return services.Wrap(services.ErrMux, "muxing", "validate inputs",
			"Queue item is missing fetched stream files; rerun fetching", nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	videoDuration, err := s.probeDuration(ctx, item.VideoStreamPath)
	if err != nil {
		return services.Wrap(services.ErrMux, "muxing", "probe video stream",
			"Could not read video stream metadata", err)
	}
	audioDuration, err := s.probeDuration(ctx, item.AudioStreamPath)
	if err != nil {
		return services.Wrap(services.ErrMux, "muxing", "probe audio stream",
			"Could not read audio stream metadata", err)
	}

	skew := math.Abs(videoDuration - audioDuration)
	if skew > s.cfg.Silence.DurationSkewSec {
		return services.Wrap(services.ErrMux, "muxing", "check stream alignment",
			fmt.Sprintf("Audio and video durations differ by %.2fs (limit %.2fs); tracks are desynced",
				skew, s.cfg.Silence.DurationSkewSec), nil)
	}

	scratch, err := stage.EnsureScratchDir(s.cfg, item)
	if err != nil {
		return err
	}
	muxedPath := filepath.Join(scratch, item.Title+".mp4")

	item.SetProgress("Muxing", "Combining streams", 50)
	logger.Info("muxing streams",
		logging.Float64("video_duration_sec", videoDuration),
		logging.Float64("audio_duration_sec", audioDuration),
		logging.Float64("skew_sec", skew),
	)
	if err := s.engine.Mux(ctx, item.VideoStreamPath, item.AudioStreamPath, muxedPath); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "combine streams",
			"Stream combination failed", err)
	}
	item.MuxedPath = muxedPath

	// The elementary streams are no longer needed once the container exists.
	for _, path := range []string{item.VideoStreamPath, item.AudioStreamPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("could not remove stream file", logging.String("path", path), logging.Error(err))
		}
	}

	if item.DownloadOnly {
		return s.finishDownloadOnly(ctx, item, logger)
	}

	item.SetProgress("Muxing", "Streams combined", 100)
	logger.Info("muxed streams", logging.String("muxed_path", muxedPath))
	return nil
}

// finishDownloadOnly moves the muxed file to the output directory and
// completes the item without analysis or cutting.
func (s *Stage) finishDownloadOnly(ctx context.Context, item *queue.Item, logger *slog.Logger) error {
	outputPath := filepath.Join(s.cfg.Paths.OutputDir, item.Title+".mp4")
	if err := fileutil.MoveFile(item.MuxedPath, outputPath); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "deliver output",
			"Could not move muxed file to output directory", err)
	}
	item.MuxedPath = outputPath
	item.OutputPath = outputPath
	item.Status = queue.StatusCompleted
	item.SetProgress("Completed", "Download delivered without derushing", 100)
	fileutil.RemoveScratch(item, logger)
	logger.Info("download-only item completed", logging.String("output_path", outputPath))
	return nil
}

func (s *Stage) probeDuration(ctx context.Context, path string) (float64, error) {
	result, err := s.engine.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return 0, fmt.Errorf("stream %s reports no duration", filepath.Base(path))
	}
	return duration, nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.engine == nil {
		return stage.Unavailable("muxer", "no media engine configured")
	}
	return stage.Available("muxer")
}
