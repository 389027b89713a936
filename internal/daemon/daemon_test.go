package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splice/internal/config"
	"splice/internal/daemon"
	"splice/internal/history"
	"splice/internal/logging"
	"splice/internal/services"
	"splice/internal/testsupport"
	"splice/internal/tracker"
)

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, cfg
}

func startDaemon(t *testing.T, d *daemon.Daemon) {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func marshalProject(t *testing.T, p any) []byte {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal project: %v", err)
	}
	return data
}

func waitForHistoryEntry(t *testing.T, d *daemon.Daemon, jobID string) *history.Entry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		entry, err := d.HistoryEntry(context.Background(), jobID)
		if err != nil {
			t.Fatalf("HistoryEntry: %v", err)
		}
		if entry != nil {
			return entry
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("history entry for job %s never appeared", jobID)
	return nil
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	ctx := context.Background()

	startDaemon(t, d)

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid: %d", status.PID)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New first: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })

	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	startDaemon(t, first)

	err = second.Start(context.Background())
	if err == nil {
		t.Fatal("expected second instance to fail")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDaemonRendersProjectEndToEnd(t *testing.T) {
	d, cfg := newDaemon(t, testsupport.WithRenderStubBinaries())
	startDaemon(t, d)

	p := testsupport.NewProject(t)
	outputPath := filepath.Join(cfg.Paths.OutputDir, "final.mp4")

	jobID, err := d.SubmitRender(marshalProject(t, p), outputPath)
	if err != nil {
		t.Fatalf("SubmitRender: %v", err)
	}

	entry := waitForHistoryEntry(t, d, jobID)
	if entry.Status != tracker.StatusCompleted {
		t.Fatalf("history status = %s, want %s", entry.Status, tracker.StatusCompleted)
	}
	if entry.OutputPath != outputPath {
		t.Fatalf("history output path = %q, want %q", entry.OutputPath, outputPath)
	}
	if entry.JobName != p.Name {
		t.Fatalf("history job name = %q, want %q", entry.JobName, p.Name)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if jobs := d.Jobs(); len(jobs) != 0 {
		t.Fatalf("expected no active jobs after completion, got %d", len(jobs))
	}
}

func TestDaemonRecordsFailedRender(t *testing.T) {
	d, cfg := newDaemon(t, testsupport.WithRenderStubBinaries())
	startDaemon(t, d)

	p := testsupport.NewProject(t)
	p.Sources[0].Path = filepath.Join(t.TempDir(), "missing.mp4")

	jobID, err := d.SubmitRender(marshalProject(t, p), filepath.Join(cfg.Paths.OutputDir, "fail.mp4"))
	if err != nil {
		t.Fatalf("SubmitRender: %v", err)
	}

	entry := waitForHistoryEntry(t, d, jobID)
	if entry.Status != tracker.StatusFailed {
		t.Fatalf("history status = %s, want %s", entry.Status, tracker.StatusFailed)
	}
	if entry.ErrorMessage == "" {
		t.Fatal("expected failure message in history entry")
	}
}

func TestDaemonEventsExposeLifecycle(t *testing.T) {
	d, cfg := newDaemon(t, testsupport.WithRenderStubBinaries())
	startDaemon(t, d)

	p := testsupport.NewProject(t)
	jobID, err := d.SubmitRender(marshalProject(t, p), filepath.Join(cfg.Paths.OutputDir, "events.mp4"))
	if err != nil {
		t.Fatalf("SubmitRender: %v", err)
	}
	waitForHistoryEntry(t, d, jobID)

	events, next, err := d.Events(context.Background(), 0, 100, false)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected at least start and terminal events, got %d", len(events))
	}
	if events[0].Type != tracker.EventJobStarted {
		t.Fatalf("first event = %s, want %s", events[0].Type, tracker.EventJobStarted)
	}
	last := events[len(events)-1]
	if last.Type != tracker.EventJobCompleted {
		t.Fatalf("last event = %s, want %s", last.Type, tracker.EventJobCompleted)
	}
	if next != last.Sequence {
		t.Fatalf("cursor = %d, want %d", next, last.Sequence)
	}
	for i, evt := range events {
		if evt.Sequence != uint64(i+1) {
			t.Fatalf("event %d has sequence %d", i, evt.Sequence)
		}
	}
}

func TestDaemonSubmitRenderRejectsMalformedProject(t *testing.T) {
	d, _ := newDaemon(t)
	startDaemon(t, d)

	_, err := d.SubmitRender([]byte("{not json"), "/out/x.mp4")
	if err == nil {
		t.Fatal("expected error for malformed project")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation failure", err)
	}
}

func TestDaemonControlUnknownJob(t *testing.T) {
	d, _ := newDaemon(t)
	startDaemon(t, d)

	if d.Cancel("nope") {
		t.Fatal("expected Cancel to return false for unknown job")
	}
	if d.Pause("nope") {
		t.Fatal("expected Pause to return false for unknown job")
	}
	if d.Resume("nope") {
		t.Fatal("expected Resume to return false for unknown job")
	}
}

func TestDaemonCacheFacade(t *testing.T) {
	d, cfg := newDaemon(t)
	startDaemon(t, d)

	stats := d.CacheStats()
	if stats.BudgetBytes != cfg.MemoryBudgetBytes() {
		t.Fatalf("budget = %d, want %d", stats.BudgetBytes, cfg.MemoryBudgetBytes())
	}

	if n, err := d.CacheClear("preview"); err != nil || n != 0 {
		t.Fatalf("CacheClear(preview) = %d, %v", n, err)
	}
	if _, err := d.CacheClear("bogus"); err == nil {
		t.Fatal("expected error for unknown region")
	}
	if n := d.CacheSweep(); n != 0 {
		t.Fatalf("expected empty sweep, got %d", n)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	d, _ := newDaemon(t)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected notification to be skipped without topic")
	}
	if message != "ntfy topic not configured" {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestDaemonShutdownRequest(t *testing.T) {
	d, _ := newDaemon(t)

	select {
	case <-d.ShutdownRequested():
		t.Fatal("shutdown channel closed prematurely")
	default:
	}

	d.RequestShutdown()
	d.RequestShutdown() // idempotent

	select {
	case <-d.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown channel never closed")
	}
}
