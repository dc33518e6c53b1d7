// Package workflow advances queue items through the processing stages.
//
// The Manager runs a small pool of workers. Each worker atomically claims
// the oldest ready item, moving it to the paired processing status, then
// runs the matching stage handler and persists the outcome. Stage failures
// mark the item failed with the failing stage's message and discard its
// scratch intermediates; the daemon keeps running. Interrupted processing
// statuses roll back to their ready status on startup so claimed work is
// never stranded by a crash.
package workflow
