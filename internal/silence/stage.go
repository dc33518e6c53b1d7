package silence

import (
	"context"
	"strings"

	"log/slog"

	"derush/internal/config"
	"derush/internal/logging"
	"derush/internal/queue"
	"derush/internal/services"
	"derush/internal/services/ffmpeg"
	"derush/internal/stage"
)

// Stage decodes the muxed file's audio track and classifies its silent
// passages.
type Stage struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	engine ffmpeg.Engine
}

// NewStage constructs the analyzing stage handler using default dependencies.
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
		stageLogger = stageLogger.With(logging.String("component", "analyzer"))
	}
	return &Stage{cfg: cfg, store: store, logger: stageLogger, engine: engine}
}

func (s *Stage) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Analyzing", "Preparing audio analysis", 0)
	item.ErrorMessage = ""
	if strings.TrimSpace(item.MuxedPath) == "" {
		return services.Wrap(services.ErrAnalysis, "analyzing", "validate inputs",
			"Queue item has no muxed file; rerun muxing", nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	silenceCfg := s.cfg.Silence

	probe, err := s.engine.Probe(ctx, item.MuxedPath)
	if err != nil {
		return services.Wrap(services.ErrAnalysis, "analyzing", "probe source",
			"Could not read source metadata", err)
	}
	duration := probe.DurationSeconds()
	if duration <= 0 {
		return services.Wrap(services.ErrAnalysis, "analyzing", "probe source",
			"Source reports no duration", nil)
	}
	if _, ok := probe.AudioStream(); !ok {
		return services.Wrap(services.ErrAnalysis, "analyzing", "probe source",
			"Source has no audio track to analyze", nil)
	}

	item.SetProgress("Analyzing", "Decoding audio track", 25)
	samples, err := s.engine.ExtractAudioPCM(ctx, item.MuxedPath, silenceCfg.SampleRate)
	if err != nil {
		return services.Wrap(services.ErrAnalysis, "analyzing", "decode audio",
			"Could not decode audio track for analysis", err)
	}
	if len(samples) == 0 {
		return services.Wrap(services.ErrAnalysis, "analyzing", "decode audio",
			"Audio track decoded to zero samples", nil)
	}

	item.SetProgress("Analyzing", "Scanning for silence", 70)
	windowSec := float64(silenceCfg.WindowMs) / 1000
	profile := Profile(samples, silenceCfg.SampleRate, silenceCfg.WindowMs)
	silences := Detect(profile, windowSec, silenceCfg.NoiseFloorDb,
		float64(silenceCfg.MinSilenceMs)/1000, duration)

	analysis := Analysis{
		DurationSeconds: duration,
		WindowSeconds:   windowSec,
		NoiseFloorDb:    silenceCfg.NoiseFloorDb,
		Silences:        silences,
	}
	encoded, err := analysis.Encode()
	if err != nil {
		return services.Wrap(services.ErrAnalysis, "analyzing", "persist analysis",
			"Could not serialize silence analysis", err)
	}
	item.SilenceJSON = encoded
	item.SetProgress("Analyzing", "Silence analysis complete", 100)

	var silentSeconds float64
	for _, interval := range silences {
		silentSeconds += interval.Duration()
	}
	logger.Info("analyzed audio",
		logging.Float64("duration_sec", duration),
		logging.Int("silence_count", len(silences)),
		logging.Float64("silent_sec", silentSeconds),
		logging.Float64("noise_floor_db", silenceCfg.NoiseFloorDb),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.engine == nil {
		return stage.Unavailable("analyzer", "no media engine configured")
	}
	return stage.Available("analyzer")
}
