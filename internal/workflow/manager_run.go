package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"derush/internal/logging"
	"derush/internal/queue"
)

// Start rolls interrupted items back to their ready statuses and begins
// background processing with the configured number of workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errAlreadyRunning
	}

	reset, err := m.store.ResetStaleProcessing(ctx)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("reset stale processing: %w", err)
	}
	if reset > 0 && m.logger != nil {
		m.logger.Info("rolled back interrupted items", logging.Int("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	workers := m.workerCount()
	m.wg.Add(workers)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight stages.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, workerID int) {
	defer m.wg.Done()
	logger := m.workerLogger(workerID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := m.store.ClaimNext(ctx, m.transitions...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next queue item", logging.Error(err))
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if item == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.processItem(ctx, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// RunToCompletion processes queue items until nothing is ready, for one-shot
// CLI invocations. It returns the first item-level failure it recorded.
func (m *Manager) RunToCompletion(ctx context.Context) error {
	logger := m.workerLogger(0)
	var firstFailure error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := m.store.ClaimNext(ctx, m.transitions...)
		if err != nil {
			return fmt.Errorf("claim next item: %w", err)
		}
		if item == nil {
			return firstFailure
		}
		if err := m.processItem(ctx, logger, item); err != nil && firstFailure == nil {
			firstFailure = err
		}
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, wait time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func (m *Manager) workerLogger(workerID int) *slog.Logger {
	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return logger.With(
		logging.String("component", "workflow-manager"),
		logging.Int("worker", workerID),
	)
}

// status helpers shared by CLI surfaces

// QueueStats reports item counts per status.
func (m *Manager) QueueStats(ctx context.Context) (map[queue.Status]int, error) {
	return m.store.Stats(ctx)
}
