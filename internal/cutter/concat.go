package cutter

import (
	"context"
	"fmt"
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

// ConcatStage joins the extracted clips into the final derushed file and
// delivers it to the output directory.
type ConcatStage struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	engine ffmpeg.Engine
}

// NewConcatStage constructs the concatenating stage handler using default dependencies.
func NewConcatStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *ConcatStage {
	engine := ffmpeg.NewCLI(
		ffmpeg.WithBinaries(cfg.FFmpegBinary(), cfg.FFprobeBinary()),
		ffmpeg.WithTimeout(cfg.CommandTimeout()),
	)
	return NewConcatStageWithEngine(cfg, store, logger, engine)
}

// NewConcatStageWithEngine allows injecting the media engine (used in tests).
func NewConcatStageWithEngine(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine ffmpeg.Engine) *ConcatStage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "concatenator"))
	}
	return &ConcatStage{cfg: cfg, store: store, logger: stageLogger, engine: engine}
}

func (s *ConcatStage) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Concatenating", "Preparing clip assembly", 0)
	item.ErrorMessage = ""
	if strings.TrimSpace(item.ClipsJSON) == "" {
		return services.Wrap(services.ErrConcat, "concatenating", "validate inputs",
			"Queue item has no extracted clips; rerun cutting", nil)
	}
	return nil
}

func (s *ConcatStage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	clips, err := DecodeClips(item.ClipsJSON)
	if err != nil {
		return services.Wrap(services.ErrConcat, "concatenating", "decode clips",
			"Persisted clip list is unreadable; rerun cutting", err)
	}
	if len(clips) == 0 {
		return services.Wrap(services.ErrConcat, "concatenating", "decode clips",
			"Clip list is empty; rerun cutting", nil)
	}

	if err := s.checkCompatibility(ctx, clips); err != nil {
		return err
	}

	scratch, err := stage.EnsureScratchDir(s.cfg, item)
	if err != nil {
		return err
	}
	paths := make([]string, len(clips))
	for i, clip := range clips {
		paths[i] = clip.Path
	}
	listPath := filepath.Join(scratch, "clips.txt")
	if err := fileutil.WriteConcatList(paths, listPath); err != nil {
		return services.Wrap(services.ErrConcat, "concatenating", "write concat list",
			"Could not write clip list file", err)
	}

	item.SetProgress("Concatenating", "Joining clips", 50)
	assembled := filepath.Join(scratch, item.Title+"_derushed.mp4")
	if err := s.engine.Concat(ctx, listPath, assembled); err != nil {
		return services.Wrap(services.ErrConcat, "concatenating", "join clips",
			"Clip concatenation failed", err)
	}

	outputPath := filepath.Join(s.cfg.Paths.OutputDir, item.Title+"_derushed.mp4")
	if err := fileutil.MoveFile(assembled, outputPath); err != nil {
		return services.Wrap(services.ErrConcat, "concatenating", "deliver output",
			"Could not move derushed file to output directory", err)
	}
	item.OutputPath = outputPath
	item.SetProgress("Concatenating", "Derushed file delivered", 100)
	fileutil.RemoveScratch(item, logger)

	logger.Info("delivered derushed file",
		logging.String("output_path", outputPath),
		logging.Int("clip_count", len(clips)),
	)
	return nil
}

// checkCompatibility verifies every clip carries the same codec parameters as
// the first one; stream-copy concatenation cannot reconcile mismatches.
func (s *ConcatStage) checkCompatibility(ctx context.Context, clips []Clip) error {
	type signature struct {
		videoCodec string
		width      int
		height     int
		audioCodec string
		sampleRate string
	}
	var reference signature

	for i, clip := range clips {
		probe, err := s.engine.Probe(ctx, clip.Path)
		if err != nil {
			return services.Wrap(services.ErrConcat, "concatenating", "probe clip",
				fmt.Sprintf("Could not read metadata of clip %d", clip.Index), err)
		}
		var sig signature
		if video, ok := probe.VideoStream(); ok {
			sig.videoCodec = video.CodecName
			sig.width = video.Width
			sig.height = video.Height
		}
		if audio, ok := probe.AudioStream(); ok {
			sig.audioCodec = audio.CodecName
			sig.sampleRate = audio.SampleRate
		}
		if i == 0 {
			reference = sig
			continue
		}
		if sig != reference {
			return services.Wrap(services.ErrConcat, "concatenating", "check clip compatibility",
				fmt.Sprintf("Clip %d encoding parameters differ from clip %d; cannot stream-copy concatenate",
					clip.Index, clips[0].Index), nil)
		}
	}
	return nil
}

func (s *ConcatStage) HealthCheck(ctx context.Context) stage.Health {
	if s.engine == nil {
		return stage.Unavailable("concatenator", "no media engine configured")
	}
	return stage.Available("concatenator")
}
