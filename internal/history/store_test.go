package history_test

import (
	"context"
	"testing"
	"time"

	"splice/internal/history"
	"splice/internal/testsupport"
	"splice/internal/tracker"
)

func completedEntry(jobID string, finished time.Time) history.Entry {
	return history.Entry{
		JobID:          jobID,
		JobName:        "clip " + jobID,
		OutputPath:     "/tmp/" + jobID + ".mp4",
		Status:         tracker.StatusCompleted,
		TotalFrames:    240,
		RenderedFrames: 240,
		Duration:       90 * time.Second,
		StartedAt:      finished.Add(-90 * time.Second),
		FinishedAt:     finished,
	}
}

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	finished := time.Date(2025, 6, 1, 10, 1, 30, 0, time.UTC)
	entry, err := store.Record(ctx, completedEntry("job-1", finished))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected entry ID to be assigned")
	}

	fetched, err := store.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.JobName != "clip job-1" {
		t.Fatalf("unexpected fetched entry: %#v", fetched)
	}
	if fetched.Status != tracker.StatusCompleted {
		t.Fatalf("expected completed status, got %s", fetched.Status)
	}
	if fetched.Duration != 90*time.Second {
		t.Fatalf("expected 90s duration, got %s", fetched.Duration)
	}
	if !fetched.FinishedAt.Equal(finished) {
		t.Fatalf("expected finished %s, got %s", finished, fetched.FinishedAt)
	}
	if !fetched.StartedAt.Equal(finished.Add(-90 * time.Second)) {
		t.Fatalf("unexpected started timestamp: %s", fetched.StartedAt)
	}
}

func TestOpenExistingDatabaseKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	testsupport.RecordEntry(t, store, completedEntry("job-1", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	entries, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != "job-1" {
		t.Fatalf("expected surviving entry for job-1, got %#v", entries)
	}
}

func TestRecordValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	if _, err := store.Record(ctx, history.Entry{Status: tracker.StatusCompleted}); err == nil {
		t.Fatal("expected error when job id missing")
	}
	if _, err := store.Record(ctx, history.Entry{JobID: "job-1"}); err == nil {
		t.Fatal("expected error when status missing")
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, jobID := range []string{"job-1", "job-2", "job-3"} {
		testsupport.RecordEntry(t, store, completedEntry(jobID, base.Add(time.Duration(i)*time.Minute)))
	}

	entries, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"job-3", "job-2", "job-1"} {
		if entries[i].JobID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, entries[i].JobID)
		}
	}

	limited, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].JobID != "job-3" {
		t.Fatalf("unexpected limited listing: %#v", limited)
	}
}

func TestGetByJobIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	entry, err := store.GetByJobID(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetByJobID failed: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil for unknown job, got %#v", entry)
	}
}

func TestRecordEventMapsTerminalEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	finished := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	ev := tracker.Event{
		Type:       tracker.EventJobCompleted,
		JobID:      "job-9",
		Timestamp:  finished,
		OutputPath: "/tmp/final.mp4",
		Duration:   2 * time.Minute,
		Progress: &tracker.Progress{
			JobID:        "job-9",
			Name:         "trailer",
			Status:       tracker.StatusCompleted,
			CurrentFrame: 300,
			TotalFrames:  300,
		},
	}
	if err := store.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	entry, err := store.GetByJobID(ctx, "job-9")
	if err != nil {
		t.Fatalf("GetByJobID failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected recorded entry")
	}
	if entry.Status != tracker.StatusCompleted {
		t.Fatalf("expected completed status, got %s", entry.Status)
	}
	if entry.JobName != "trailer" {
		t.Fatalf("expected name from progress snapshot, got %q", entry.JobName)
	}
	if entry.RenderedFrames != 300 || entry.TotalFrames != 300 {
		t.Fatalf("expected frame counts copied, got %d/%d", entry.RenderedFrames, entry.TotalFrames)
	}
	if entry.OutputPath != "/tmp/final.mp4" {
		t.Fatalf("unexpected output path %q", entry.OutputPath)
	}
	if !entry.StartedAt.Equal(finished.Add(-2 * time.Minute)) {
		t.Fatalf("expected start derived from duration, got %s", entry.StartedAt)
	}
}

func TestRecordEventIgnoresNonTerminalEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	ev := tracker.Event{
		Type:      tracker.EventProgressChanged,
		JobID:     "job-5",
		Timestamp: time.Now().UTC(),
		Progress:  &tracker.Progress{JobID: "job-5", CurrentFrame: 10, TotalFrames: 100},
	}
	if err := store.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries for progress event, got %d", len(entries))
	}
}

func TestRecordEventCancelledFallsBackToSnapshotPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	ev := tracker.Event{
		Type:      tracker.EventJobCancelled,
		JobID:     "job-3",
		Timestamp: time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
		Duration:  30 * time.Second,
		Progress: &tracker.Progress{
			JobID:      "job-3",
			Name:       "credits",
			OutputPath: "/tmp/credits.mp4",
		},
	}
	if err := store.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	entry, err := store.GetByJobID(ctx, "job-3")
	if err != nil {
		t.Fatalf("GetByJobID failed: %v", err)
	}
	if entry == nil || entry.Status != tracker.StatusCancelled {
		t.Fatalf("expected cancelled entry, got %#v", entry)
	}
	if entry.OutputPath != "/tmp/credits.mp4" {
		t.Fatalf("expected output path from snapshot, got %q", entry.OutputPath)
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	testsupport.RecordEntry(t, store, completedEntry("job-1", base))
	testsupport.RecordEntry(t, store, completedEntry("job-2", base.Add(time.Minute)))

	failed := completedEntry("job-3", base.Add(2*time.Minute))
	failed.Status = tracker.StatusFailed
	failed.ErrorMessage = "encoder exploded"
	testsupport.RecordEntry(t, store, failed)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[tracker.StatusCompleted] != 2 {
		t.Fatalf("expected 2 completed, got %d", stats[tracker.StatusCompleted])
	}
	if stats[tracker.StatusFailed] != 1 {
		t.Fatalf("expected 1 failed, got %d", stats[tracker.StatusFailed])
	}
}

func TestClearRemovesEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	testsupport.RecordEntry(t, store, completedEntry("job-1", base))
	testsupport.RecordEntry(t, store, completedEntry("job-2", base.Add(time.Minute)))

	removed, err := store.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	entries, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(entries))
	}
}

func TestRetentionKeepsNewestEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistoryRetained(2))
	store := testsupport.MustOpenHistory(t, cfg)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, jobID := range []string{"job-1", "job-2", "job-3"} {
		testsupport.RecordEntry(t, store, completedEntry(jobID, base.Add(time.Duration(i)*time.Minute)))
	}

	entries, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected retention cap of 2, got %d entries", len(entries))
	}
	for i, want := range []string{"job-3", "job-2"} {
		if entries[i].JobID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, entries[i].JobID)
		}
	}
}

func TestCheckHealthReportsDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	testsupport.RecordEntry(t, store, completedEntry("job-1", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health report: %#v", health)
	}
	if health.TotalEntries != 1 {
		t.Fatalf("expected 1 entry counted, got %d", health.TotalEntries)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}
