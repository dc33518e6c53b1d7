// Package stage defines the contract between the workflow manager and the
// pipeline stages that move a queue item from source URL to de-rushed output.
package stage

import (
	"context"

	"derush/internal/queue"
)

// Handler is implemented by each pipeline stage. Prepare runs before the item
// transitions into the stage's processing status and may reject items that
// lack required artifacts from earlier stages. Execute performs the stage's
// work against the item's scratch directory.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health reports whether a stage is able to process items, typically whether
// its media engine or HTTP client is wired.
type Health struct {
	Stage  string
	Ready  bool
	Detail string
}

func Available(stageName string) Health {
	return Health{Stage: stageName, Ready: true}
}

func Unavailable(stageName, detail string) Health {
	return Health{Stage: stageName, Ready: false, Detail: detail}
}
