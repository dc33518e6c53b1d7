package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"derush/internal/config"
	"derush/internal/queue"
	"derush/internal/services"
)

// EnsureScratchDir creates (or reuses) the item's private scratch directory
// under the configured scratch root and records it on the item. Stage outputs
// and intermediate files all live inside it so failure cleanup is a single
// directory removal.
func EnsureScratchDir(cfg *config.Config, item *queue.Item) (string, error) {
	if dir := strings.TrimSpace(item.ScratchDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", services.Wrap(services.ErrConfiguration, "stage", "ensure scratch",
				"Could not create item scratch directory", err)
		}
		return dir, nil
	}
	dir := filepath.Join(cfg.Paths.ScratchDir, fmt.Sprintf("%s-%s", item.Title, uuid.NewString()[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "stage", "ensure scratch",
			"Could not create item scratch directory", err)
	}
	item.ScratchDir = dir
	return dir, nil
}
