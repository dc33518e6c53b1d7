package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"derush/internal/config"
	"derush/internal/cutter"
	"derush/internal/fetch"
	"derush/internal/manifest"
	"derush/internal/mux"
	"derush/internal/queue"
	"derush/internal/silence"
	"derush/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Resolver     stage.Handler
	Fetcher      stage.Handler
	Muxer        stage.Handler
	Analyzer     stage.Handler
	Cutter       stage.Handler
	Concatenator stage.Handler
}

// DefaultStages constructs the production stage handlers.
func DefaultStages(cfg *config.Config, store *queue.Store, logger *slog.Logger) StageSet {
	return StageSet{
		Resolver:     manifest.NewStage(cfg, store, logger),
		Fetcher:      fetch.NewStage(cfg, store, logger),
		Muxer:        mux.NewStage(cfg, store, logger),
		Analyzer:     silence.NewStage(cfg, store, logger),
		Cutter:       cutter.NewCuttingStage(cfg, store, logger),
		Concatenator: cutter.NewConcatStage(cfg, store, logger),
	}
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing: a small pool of workers claims ready
// items, runs the stage matching each item's status, and persists the result.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration

	stages       []pipelineStage
	byProcessing map[queue.Status]pipelineStage
	transitions  []queue.Transition

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item
}

// NewManager constructs a workflow manager around the given stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, set StageSet) *Manager {
	stages := []pipelineStage{
		{name: "resolving", handler: set.Resolver, startStatus: queue.StatusPending, processingStatus: queue.StatusResolving, doneStatus: queue.StatusResolved},
		{name: "fetching", handler: set.Fetcher, startStatus: queue.StatusResolved, processingStatus: queue.StatusFetching, doneStatus: queue.StatusFetched},
		{name: "muxing", handler: set.Muxer, startStatus: queue.StatusFetched, processingStatus: queue.StatusMuxing, doneStatus: queue.StatusMuxed},
		{name: "analyzing", handler: set.Analyzer, startStatus: queue.StatusMuxed, processingStatus: queue.StatusAnalyzing, doneStatus: queue.StatusAnalyzed},
		{name: "cutting", handler: set.Cutter, startStatus: queue.StatusAnalyzed, processingStatus: queue.StatusCutting, doneStatus: queue.StatusCut},
		{name: "concatenating", handler: set.Concatenator, startStatus: queue.StatusCut, processingStatus: queue.StatusConcatenating, doneStatus: queue.StatusCompleted},
	}

	byProcessing := make(map[queue.Status]pipelineStage, len(stages))
	transitions := make([]queue.Transition, 0, len(stages))
	for _, stg := range stages {
		byProcessing[stg.processingStatus] = stg
		transitions = append(transitions, queue.Transition{From: stg.startStatus, To: stg.processingStatus})
	}

	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		stages:       stages,
		byProcessing: byProcessing,
		transitions:  transitions,
	}
}

// Health reports the readiness of every configured stage.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.stages))
	for _, stg := range m.stages {
		if stg.handler == nil {
			checks = append(checks, stage.Unavailable(stg.name, "no handler configured"))
			continue
		}
		checks = append(checks, stg.handler.HealthCheck(ctx))
	}
	return checks
}

// LastError returns the most recent stage or queue error, for status surfaces.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastItem returns the most recently processed item.
func (m *Manager) LastItem() *queue.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastItem
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	m.lastItem = item
	m.mu.Unlock()
}

func (m *Manager) workerCount() int {
	count := m.cfg.Workflow.MaxActiveItems
	if count < 1 {
		count = 1
	}
	return count
}

var errAlreadyRunning = errors.New("workflow already running")
