// Package services defines the shared error taxonomy and context annotations
// used by pipeline stages. Sentinel errors classify a failure by the stage
// concern that produced it (resolution, fetch, mux, analysis, cut, concat)
// so the workflow manager and CLI can report a single actionable message.
package services
