package ffmpeg

import (
	"context"

	"derush/internal/media/ffprobe"
)

// Engine is the narrow contract the pipeline has with the external media
// processing tool. All codec-level work happens behind it; the pipeline only
// decides which byte/time ranges to feed it and in what order. Tests
// substitute a fake implementation.
type Engine interface {
	// Probe returns container and stream metadata for a media file.
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
	// Mux combines one video and one audio elementary stream into a single
	// container without re-encoding.
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
	// ExtractRange cuts [start, end) seconds out of input into outputPath,
	// audio and video in sync, cutting at the nearest safe media boundary.
	ExtractRange(ctx context.Context, inputPath string, start, end float64, outputPath string) error
	// Concat losslessly joins the files named in the concat-demuxer list file.
	Concat(ctx context.Context, listPath, outputPath string) error
	// ExtractAudioPCM decodes the audio track of inputPath to mono PCM
	// samples in [-1, 1] at the requested rate.
	ExtractAudioPCM(ctx context.Context, inputPath string, sampleRate int) ([]float64, error)
}
