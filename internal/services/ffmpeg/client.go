package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"derush/internal/media/ffprobe"
	"derush/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the CLI client.
type Option func(*CLI)

// WithBinaries overrides the default ffmpeg/ffprobe binary names.
func WithBinaries(ffmpegBinary, ffprobeBinary string) Option {
	return func(c *CLI) {
		if ffmpegBinary != "" {
			c.ffmpeg = ffmpegBinary
		}
		if ffprobeBinary != "" {
			c.ffprobe = ffprobeBinary
		}
	}
}

// WithTimeout bounds every external invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		c.timeout = timeout
	}
}

// CLI wraps the ffmpeg and ffprobe command-line tools as an Engine.
type CLI struct {
	ffmpeg  string
	ffprobe string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

func (c *CLI) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// classify tags context-deadline failures so callers can report a stuck
// external tool rather than a generic subprocess error.
func classify(ctx context.Context, operation string, err error, output []byte) error {
	if err == nil {
		return nil
	}
	detail := strings.TrimSpace(string(output))
	if len(detail) > 512 {
		detail = detail[len(detail)-512:]
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "ffmpeg", operation, "invocation exceeded its bound", err)
	}
	if detail != "" {
		return fmt.Errorf("%s: %w: %s", operation, err, detail)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// Probe implements Engine.
func (c *CLI) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	runCtx, cancel := c.boundedContext(ctx)
	defer cancel()
	result, err := ffprobe.Inspect(runCtx, c.ffprobe, path)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ffprobe.Result{}, services.Wrap(services.ErrTimeout, "ffmpeg", "probe", "invocation exceeded its bound", err)
		}
		return ffprobe.Result{}, err
	}
	return result, nil
}

// Mux implements Engine. Container-level combination only; both streams are
// stream-copied into the output.
func (c *CLI) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if videoPath == "" || audioPath == "" || outputPath == "" {
		return errors.New("mux: video, audio, and output paths are required")
	}
	runCtx, cancel := c.boundedContext(ctx)
	defer cancel()

	cmd := commandContext(runCtx, c.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	return classify(runCtx, "mux", err, output)
}

// ExtractRange implements Engine. The cut is a stream copy, so the actual
// boundary lands on the nearest preceding keyframe.
func (c *CLI) ExtractRange(ctx context.Context, inputPath string, start, end float64, outputPath string) error {
	if inputPath == "" || outputPath == "" {
		return errors.New("extract: input and output paths are required")
	}
	if end <= start {
		return fmt.Errorf("extract: invalid range [%f, %f]", start, end)
	}
	runCtx, cancel := c.boundedContext(ctx)
	defer cancel()

	cmd := commandContext(runCtx, c.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end-start),
		"-i", inputPath,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	return classify(runCtx, "extract range", err, output)
}

// Concat implements Engine using the concat demuxer with stream copy.
func (c *CLI) Concat(ctx context.Context, listPath, outputPath string) error {
	if listPath == "" || outputPath == "" {
		return errors.New("concat: list and output paths are required")
	}
	runCtx, cancel := c.boundedContext(ctx)
	defer cancel()

	cmd := commandContext(runCtx, c.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	return classify(runCtx, "concat", err, output)
}

// ExtractAudioPCM implements Engine. The audio track is downmixed to mono
// s16le at the requested rate and decoded from the subprocess stdout.
func (c *CLI) ExtractAudioPCM(ctx context.Context, inputPath string, sampleRate int) ([]float64, error) {
	if inputPath == "" {
		return nil, errors.New("pcm: input path is required")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pcm: invalid sample rate %d", sampleRate)
	}
	runCtx, cancel := c.boundedContext(ctx)
	defer cancel()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd := commandContext(runCtx, c.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classify(runCtx, "decode audio", err, stderr.Bytes())
	}
	return decodePCM16(stdout.Bytes()), nil
}

func decodePCM16(raw []byte) []float64 {
	samples := make([]float64, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		v := int16(binary.LittleEndian.Uint16(raw[i : i+2]))
		samples = append(samples, float64(v)/float64(math.MaxInt16+1))
	}
	return samples
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

var _ Engine = (*CLI)(nil)
