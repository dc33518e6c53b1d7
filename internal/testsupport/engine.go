package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"derush/internal/media/ffprobe"
)

// FakeEngine is a configurable media engine for tests. Every operation can be
// overridden with a func field; unset operations fall back to a benign
// default that writes a placeholder output file. Calls are recorded so tests
// can assert which operations ran and with what arguments.
type FakeEngine struct {
	mu    sync.Mutex
	calls []string

	ProbeFunc           func(ctx context.Context, path string) (ffprobe.Result, error)
	MuxFunc             func(ctx context.Context, videoPath, audioPath, outputPath string) error
	ExtractRangeFunc    func(ctx context.Context, inputPath string, start, end float64, outputPath string) error
	ConcatFunc          func(ctx context.Context, listPath, outputPath string) error
	ExtractAudioPCMFunc func(ctx context.Context, inputPath string, sampleRate int) ([]float64, error)

	// DefaultProbe is returned by Probe when ProbeFunc is nil.
	DefaultProbe ffprobe.Result
	// DefaultPCM is returned by ExtractAudioPCM when ExtractAudioPCMFunc is nil.
	DefaultPCM []float64
}

// NewFakeEngine returns a fake engine whose default probe result describes a
// container of the given duration with one h264 video and one aac audio
// stream.
func NewFakeEngine(durationSeconds float64) *FakeEngine {
	duration := strconv.FormatFloat(durationSeconds, 'f', 6, 64)
	return &FakeEngine{
		DefaultProbe: ffprobe.Result{
			Streams: []ffprobe.Stream{
				{Index: 0, CodecType: "video", CodecName: "h264", Duration: duration, Width: 1920, Height: 1080, AvgFrameRate: "30/1"},
				{Index: 1, CodecType: "audio", CodecName: "aac", Duration: duration, SampleRate: "48000", Channels: 2},
			},
			Format: ffprobe.Format{NBStreams: 2, Duration: duration, FormatName: "mov,mp4,m4a,3gp,3g2,mj2"},
		},
	}
}

func (f *FakeEngine) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the recorded operation log.
func (f *FakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *FakeEngine) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	f.record("probe %s", path)
	if f.ProbeFunc != nil {
		return f.ProbeFunc(ctx, path)
	}
	return f.DefaultProbe, nil
}

func (f *FakeEngine) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	f.record("mux %s + %s -> %s", videoPath, audioPath, outputPath)
	if f.MuxFunc != nil {
		return f.MuxFunc(ctx, videoPath, audioPath, outputPath)
	}
	return writePlaceholder(outputPath)
}

func (f *FakeEngine) ExtractRange(ctx context.Context, inputPath string, start, end float64, outputPath string) error {
	f.record("extract %s [%.3f, %.3f) -> %s", inputPath, start, end, outputPath)
	if f.ExtractRangeFunc != nil {
		return f.ExtractRangeFunc(ctx, inputPath, start, end, outputPath)
	}
	return writePlaceholder(outputPath)
}

func (f *FakeEngine) Concat(ctx context.Context, listPath, outputPath string) error {
	f.record("concat %s -> %s", listPath, outputPath)
	if f.ConcatFunc != nil {
		return f.ConcatFunc(ctx, listPath, outputPath)
	}
	return writePlaceholder(outputPath)
}

func (f *FakeEngine) ExtractAudioPCM(ctx context.Context, inputPath string, sampleRate int) ([]float64, error) {
	f.record("pcm %s @ %d", inputPath, sampleRate)
	if f.ExtractAudioPCMFunc != nil {
		return f.ExtractAudioPCMFunc(ctx, inputPath, sampleRate)
	}
	return f.DefaultPCM, nil
}

func writePlaceholder(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake media"), 0o644)
}
