package daemon

import (
	"context"
	"testing"

	"derush/internal/logging"
	"derush/internal/testsupport"
	"derush/internal/workflow"
)

func TestStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	d, err := New(cfg, store, logger, workflow.NewManager(cfg, store, logger, workflow.DefaultStages(cfg, store, logger)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon running after Start")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected status to report running")
	}
	if len(status.Stages) == 0 {
		t.Fatal("expected stage health entries")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon stopped after Stop")
	}
}

func TestLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	newDaemon := func() *Daemon {
		mgr := workflow.NewManager(cfg, store, logger, workflow.DefaultStages(cfg, store, logger))
		d, err := New(cfg, store, logger, mgr)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return d
	}

	first := newDaemon()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second := newDaemon()
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected by the lock")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
