// Package daemon coordinates the long-running derush process.
//
// It wires configuration, queue storage, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and runs periodic scratch-directory cleanup while workers drain the queue.
//
// Keep orchestration logic here: individual pipeline stages live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high-level coordination.
package daemon
