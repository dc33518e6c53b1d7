package silence_test

import (
	"context"
	"errors"
	"testing"

	"derush/internal/logging"
	"derush/internal/services"
	"derush/internal/silence"
	"derush/internal/testsupport"
)

func TestPrepareRequiresMuxedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := silence.NewStageWithEngine(cfg, store, logging.NewNop(), testsupport.NewFakeEngine(10))

	item := testsupport.NewRemote(t, store, "https://share.example.com/share/x")
	if err := handler.Prepare(context.Background(), item); !errors.Is(err, services.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
}

func TestExecutePersistsSilenceAnalysis(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Silence.SampleRate = 1000
	cfg.Silence.WindowMs = 100
	cfg.Silence.NoiseFloorDb = -45
	cfg.Silence.MinSilenceMs = 400
	store := testsupport.MustOpenStore(t, cfg)

	// 3 seconds of audio: 1s speech, 1s silence, 1s speech.
	engine := testsupport.NewFakeEngine(3)
	samples := make([]float64, 3000)
	for i := range samples {
		if i < 1000 || i >= 2000 {
			samples[i] = 0.5
		}
	}
	engine.DefaultPCM = samples
	handler := silence.NewStageWithEngine(cfg, store, logging.NewNop(), engine)

	item := testsupport.NewLocalFile(t, store, "/media/talks/demo.mp4")
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	analysis, err := silence.DecodeAnalysis(item.SilenceJSON)
	if err != nil {
		t.Fatalf("DecodeAnalysis failed: %v", err)
	}
	if analysis.DurationSeconds != 3 {
		t.Fatalf("unexpected duration %v", analysis.DurationSeconds)
	}
	if len(analysis.Silences) != 1 {
		t.Fatalf("expected 1 silence, got %#v", analysis.Silences)
	}
	got := analysis.Silences[0]
	if got.Start != 1 || got.End != 2 {
		t.Fatalf("unexpected silence bounds: %#v", got)
	}
}

func TestExecuteClassifiesDecodeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := testsupport.NewFakeEngine(10)
	engine.ExtractAudioPCMFunc = func(ctx context.Context, inputPath string, sampleRate int) ([]float64, error) {
		return nil, errors.New("corrupt bitstream")
	}
	handler := silence.NewStageWithEngine(cfg, store, logging.NewNop(), engine)

	item := testsupport.NewLocalFile(t, store, "/media/talks/broken.mp4")
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
}

func TestExecuteRejectsEmptyAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := testsupport.NewFakeEngine(10)
	engine.DefaultPCM = nil
	handler := silence.NewStageWithEngine(cfg, store, logging.NewNop(), engine)

	item := testsupport.NewLocalFile(t, store, "/media/talks/empty.mp4")
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
}
