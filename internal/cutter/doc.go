// Package cutter removes the silent passages from a muxed source. The
// cutting stage extracts every planned keep range into its own clip via
// lossless stream copy; the concatenating stage joins the clips and delivers
// the derushed file.
package cutter
