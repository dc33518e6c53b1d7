// Package fetch downloads the resolved audio and video chunk tracks. Chunks
// download concurrently with bounded parallelism and per-chunk retries, then
// assemble into one stream file per track in playlist order.
package fetch
