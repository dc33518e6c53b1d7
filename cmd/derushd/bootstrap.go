package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"derush/internal/config"
	"derush/internal/daemon"
	"derush/internal/deps"
	"derush/internal/logging"
	"derush/internal/queue"
	"derush/internal/workflow"
)

// run wires the daemon from configuration and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      resolveLogFormat(cfg),
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "derushd.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := deps.Verify(cfg); err != nil {
		logger.Warn("dependency preflight", logging.Args(logging.Error(err))...)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}

	manager := workflow.NewManager(cfg, store, logger, workflow.DefaultStages(cfg, store, logger))
	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("derushd shutting down")
	return nil
}

func resolveLogFormat(cfg *config.Config) string {
	format := cfg.Logging.Format
	if format != "" && format != "auto" {
		return format
	}
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "console"
	}
	return "json"
}
