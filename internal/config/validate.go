package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	if err := c.validateSilence(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	return ensurePositiveMap(map[string]int{
		"http.request_timeout":     c.HTTP.RequestTimeout,
		"http.chunk_concurrency":   c.HTTP.ChunkConcurrency,
		"http.chunk_retries":       c.HTTP.ChunkRetries,
		"http.retry_backoff_ms":    c.HTTP.RetryBackoffMillis,
		"http.preferred_bandwidth": c.HTTP.PreferredBandwidth,
	})
}

func (c *Config) validateSilence() error {
	if c.Silence.NoiseFloorDb >= 0 {
		return errors.New("silence.noise_floor_db must be negative (dBFS)")
	}
	if err := ensurePositiveMap(map[string]int{
		"silence.min_silence_ms": c.Silence.MinSilenceMs,
		"silence.window_ms":      c.Silence.WindowMs,
		"silence.sample_rate":    c.Silence.SampleRate,
	}); err != nil {
		return err
	}
	if c.Silence.PaddingMs < 0 {
		return errors.New("silence.padding_ms must not be negative")
	}
	if c.Silence.MinKeepMs < 0 {
		return errors.New("silence.min_keep_ms must not be negative")
	}
	if c.Silence.DurationSkewSec <= 0 {
		return errors.New("silence.duration_skew_sec must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"ffmpeg.command_timeout":          c.FFmpeg.CommandTimeout,
		"workflow.queue_poll_interval":    c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":   c.Workflow.ErrorRetryInterval,
		"workflow.max_active_items":       c.Workflow.MaxActiveItems,
		"workflow.scratch_max_age_hours": c.Workflow.ScratchMaxAgeHours,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
