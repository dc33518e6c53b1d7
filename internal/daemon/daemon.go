package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"derush/internal/config"
	"derush/internal/fileutil"
	"derush/internal/logging"
	"derush/internal/queue"
	"derush/internal/stage"
	"derush/internal/workflow"
)

const cleanupInterval = time.Hour

// Daemon owns the background processing lifecycle.
type Daemon struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	QueueDBPath  string
	LockFilePath string
	Stages       []stage.Health
	QueueStats   map[queue.Status]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "derushd.lock")
	return &Daemon{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches queue workers plus the
// scratch cleanup loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another derush daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	d.wg.Add(1)
	go d.runScratchCleanup(runCtx)

	d.running.Store(true)
	d.logger.Info("daemon started", logging.Args(
		logging.String("lock", d.lockPath),
		logging.String("queue_db", d.store.Path()),
	)...)
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether background processing is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status summarizes daemon, stage, and queue state.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Stages:       d.workflow.Health(ctx),
		QueueStats:   stats,
	}, nil
}

// runScratchCleanup periodically removes scratch directories older than the
// configured age. Failed items keep their scratch removed at failure time;
// this sweep catches leftovers from crashes.
func (d *Daemon) runScratchCleanup(ctx context.Context) {
	defer d.wg.Done()

	maxAge := time.Duration(d.cfg.Workflow.ScratchMaxAgeHours) * time.Hour
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := fileutil.CleanScratchRoot(d.cfg.Paths.ScratchDir, maxAge)
			if err != nil {
				d.logger.Warn("scratch cleanup", logging.Args(logging.Error(err))...)
				continue
			}
			if removed > 0 {
				d.logger.Info("scratch cleanup", logging.Args(logging.Int("removed", removed))...)
			}
		}
	}
}
