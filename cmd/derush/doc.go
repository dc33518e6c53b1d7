// Package main hosts the derush CLI entrypoint and command graph.
//
// The Cobra-based command tree covers one-shot derushing (`run`), queue
// management for the daemon (`add`, `add-file`, `queue`), status reporting,
// configuration scaffolding, dependency preflight, and scratch cleanup. It
// centralizes configuration resolution and store access so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
