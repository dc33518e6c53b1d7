// Package logging configures the process-wide slog logger. It provides a
// compact console handler for interactive use, a JSON handler for log files
// and machine consumers, shared attribute helpers, and context-derived
// structured fields (item ID, stage, correlation ID).
package logging
