package testsupport

import (
	"context"
	"testing"

	"derush/internal/config"
	"derush/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRemote creates a queued share-URL item for tests using the provided store.
func NewRemote(t testing.TB, store *queue.Store, sourceURL string) *queue.Item {
	t.Helper()

	item, err := store.NewRemote(context.Background(), sourceURL, false)
	if err != nil {
		t.Fatalf("store.NewRemote: %v", err)
	}
	return item
}

// NewLocalFile creates a queued local-file item for tests using the provided store.
func NewLocalFile(t testing.TB, store *queue.Store, sourcePath string) *queue.Item {
	t.Helper()

	item, err := store.NewLocalFile(context.Background(), sourcePath)
	if err != nil {
		t.Fatalf("store.NewLocalFile: %v", err)
	}
	return item
}
