package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"derush/internal/logging"
	"derush/internal/queue"
	"derush/internal/services"
)

// processItem runs the stage matching the item's processing status. The item
// arrives already claimed, so every exit path persists a terminal or done
// status for it.
func (m *Manager) processItem(ctx context.Context, workerLogger *slog.Logger, item *queue.Item) error {
	stg, ok := m.byProcessing[item.Status]
	if !ok {
		err := fmt.Errorf("no stage registered for status %q", item.Status)
		m.failItem(ctx, workerLogger, "workflow", item, err)
		return err
	}
	if stg.handler == nil {
		err := fmt.Errorf("stage %s has no handler", stg.name)
		m.failItem(ctx, workerLogger, stg.name, item, err)
		return err
	}

	requestID := uuid.NewString()
	stageCtx := services.WithItemID(ctx, item.ID)
	stageCtx = services.WithStage(stageCtx, stg.name)
	stageCtx = services.WithRequestID(stageCtx, requestID)
	stageLogger := logging.WithContext(stageCtx, workerLogger)

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", strings.TrimSpace(item.Title)),
		logging.String("status", string(item.Status)),
	)

	if err := stg.handler.Prepare(stageCtx, item); err != nil {
		m.failItem(stageCtx, stageLogger, stg.name, item, err)
		return err
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	if err := stg.handler.Execute(stageCtx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		m.failItem(stageCtx, stageLogger, stg.name, item, err)
		return err
	}

	// Stages may complete an item early (download-only finishes at muxing);
	// otherwise advance to the stage's done status.
	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	if item.Status == queue.StatusCompleted {
		if item.ProgressPercent < 100 {
			item.ProgressPercent = 100
		}
		if strings.TrimSpace(item.ProgressStage) == "" {
			item.ProgressStage = "Completed"
		}
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(item)
	return nil
}

// failItem marks the item failed, discards its scratch intermediates, and
// persists the failure. The daemon keeps running.
func (m *Manager) failItem(ctx context.Context, logger *slog.Logger, stageName string, item *queue.Item, stageErr error) {
	message := services.Message(stageErr)
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	item.SetFailed(message)
	m.discardIntermediates(item)

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("failed_stage", stageName),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastError(stageErr)
	m.setLastItem(item)
}

// discardIntermediates removes the item's scratch directory and clears every
// artifact reference that pointed into it, so a retry restarts from the last
// stage whose outputs survive.
func (m *Manager) discardIntermediates(item *queue.Item) {
	scratch := strings.TrimSpace(item.ScratchDir)
	if scratch == "" {
		return
	}
	inScratch := func(path string) bool {
		if path == "" {
			return false
		}
		return strings.HasPrefix(path, scratch+string(filepath.Separator))
	}
	if inScratch(item.VideoStreamPath) {
		item.VideoStreamPath = ""
	}
	if inScratch(item.AudioStreamPath) {
		item.AudioStreamPath = ""
	}
	if inScratch(item.MuxedPath) {
		item.MuxedPath = ""
	}
	// Clips live in scratch by construction.
	item.ClipsJSON = ""

	if err := os.RemoveAll(scratch); err != nil && m.logger != nil {
		m.logger.Warn("could not remove scratch directory",
			logging.String("path", scratch), logging.Error(err))
	}
	item.ScratchDir = ""
}
