package config

const (
	defaultOutputDir  = "~/.local/share/derush/output"
	defaultScratchDir = "~/.local/share/derush/scratch"
	defaultLogDir     = "~/.local/share/derush/logs"

	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"
	defaultRequestTimeout     = 30
	defaultChunkConcurrency   = 5
	defaultChunkRetries       = 3
	defaultRetryBackoffMillis = 500
	defaultPreferredBandwidth = 3200000

	defaultNoiseFloorDb    = -45.0
	defaultMinSilenceMs    = 400
	defaultPaddingMs       = 600
	defaultMinKeepMs       = 200
	defaultWindowMs        = 100
	defaultSampleRate      = 16000
	defaultDurationSkewSec = 1.0

	defaultCommandTimeout = 600

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultMaxActiveItems     = 2
	defaultScratchMaxAgeHours = 24

	defaultLogFormat = "auto"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		HTTP: HTTP{
			UserAgent:          defaultUserAgent,
			RequestTimeout:     defaultRequestTimeout,
			ChunkConcurrency:   defaultChunkConcurrency,
			ChunkRetries:       defaultChunkRetries,
			RetryBackoffMillis: defaultRetryBackoffMillis,
			PreferredBandwidth: defaultPreferredBandwidth,
		},
		Silence: Silence{
			NoiseFloorDb:    defaultNoiseFloorDb,
			MinSilenceMs:    defaultMinSilenceMs,
			PaddingMs:       defaultPaddingMs,
			MinKeepMs:       defaultMinKeepMs,
			WindowMs:        defaultWindowMs,
			SampleRate:      defaultSampleRate,
			DurationSkewSec: defaultDurationSkewSec,
		},
		FFmpeg: FFmpeg{
			CommandTimeout: defaultCommandTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxActiveItems:     defaultMaxActiveItems,
			ScratchMaxAgeHours: defaultScratchMaxAgeHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
