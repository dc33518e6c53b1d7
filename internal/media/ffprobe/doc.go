// Package ffprobe parses ffprobe JSON output into typed container and stream
// metadata used for duration, frame-rate, and codec compatibility checks.
package ffprobe
