// Package ffmpeg wraps the external ffmpeg/ffprobe tools behind the narrow
// Engine interface the pipeline stages depend on: probe, mux, range extract,
// lossless concat, and PCM audio decode. Every invocation runs under a
// configurable timeout and deadline overruns are tagged as timeout errors.
package ffmpeg
