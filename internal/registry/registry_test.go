package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"splice/internal/pipeline"
	"splice/internal/project"
	"splice/internal/services"
)

func testContext(jobID string) *pipeline.Context {
	p := &project.Project{
		ID:      "proj-1",
		Name:    "Registry Test",
		Sources: []project.Source{{ID: "a", Path: "/media/a.mp4"}},
		Tracks: []project.Track{
			{ID: "v1", Kind: "video", Clips: []project.Clip{{SourceID: "a", In: 0, Out: 3}}},
		},
		Settings: project.Settings{Width: 640, Height: 360, FPS: 25, Duration: 3},
	}
	return pipeline.NewContext(jobID, p, "/out/final.mp4")
}

func TestAcquireEnforcesLimit(t *testing.T) {
	r := New(2, nil)

	releaseA, err := r.Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := r.Acquire(); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if got := r.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2", got)
	}

	_, err = r.Acquire()
	if !errors.Is(err, services.ErrTooManyJobs) {
		t.Fatalf("error = %v, want too-many-jobs", err)
	}
	if !strings.Contains(err.Error(), "too many active jobs") {
		t.Fatalf("error message %q lacks admission condition", err)
	}

	releaseA()
	if _, err := r.Acquire(); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := New(1, nil)
	release, err := r.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	release()
	if got := r.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount = %d after double release", got)
	}
}

func TestRegisterRejectsDuplicateJob(t *testing.T) {
	r := New(4, nil)
	pc := testContext("job-1")

	if err := r.Register("job-1", pc, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register("job-1", pc, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("duplicate registration error = %v", err)
	}
}

func TestCancelSetsCooperativeFlag(t *testing.T) {
	r := New(4, nil)
	pc := testContext("job-1")
	if err := r.Register("job-1", pc, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !r.Cancel("job-1") {
		t.Fatal("Cancel returned false for registered job")
	}
	if !pc.Cancelled() {
		t.Fatal("context flag not set")
	}
	if r.Cancel("ghost") {
		t.Fatal("Cancel returned true for unknown job")
	}
}

func TestPauseResumeAcknowledged(t *testing.T) {
	r := New(4, nil)
	if err := r.Register("job-1", testContext("job-1"), nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if r.Paused("job-1") {
		t.Fatal("fresh job reported paused")
	}
	if !r.Pause("job-1") {
		t.Fatal("Pause returned false for registered job")
	}
	if !r.Paused("job-1") {
		t.Fatal("pause not recorded")
	}
	if !r.Resume("job-1") {
		t.Fatal("Resume returned false for registered job")
	}
	if r.Paused("job-1") {
		t.Fatal("resume did not clear pause")
	}

	if r.Pause("ghost") || r.Resume("ghost") {
		t.Fatal("control operations acknowledged an unknown job")
	}
}

func TestRebindCarriesCancellation(t *testing.T) {
	r := New(4, nil)
	first := testContext("job-1")
	if err := r.Register("job-1", first, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Cancel("job-1")

	second := testContext("job-1")
	if !r.Rebind("job-1", second) {
		t.Fatal("Rebind returned false for registered job")
	}
	if !second.Cancelled() {
		t.Fatal("pending cancellation lost across rebind")
	}
	if r.Rebind("ghost", second) {
		t.Fatal("Rebind acknowledged an unknown job")
	}
}

func TestShutdownForceCancelsEverything(t *testing.T) {
	r := New(4, nil)

	ctxA, stopA := context.WithCancel(context.Background())
	ctxB, stopB := context.WithCancel(context.Background())
	defer stopA()
	defer stopB()

	pcA := testContext("job-a")
	pcB := testContext("job-b")
	if err := r.Register("job-a", pcA, stopA); err != nil {
		t.Fatalf("Register job-a: %v", err)
	}
	if err := r.Register("job-b", pcB, stopB); err != nil {
		t.Fatalf("Register job-b: %v", err)
	}

	ids := r.Shutdown()
	if len(ids) != 2 || ids[0] != "job-a" || ids[1] != "job-b" {
		t.Fatalf("Shutdown cancelled %v", ids)
	}
	if !pcA.Cancelled() || !pcB.Cancelled() {
		t.Fatal("cooperative flags not set on shutdown")
	}
	if ctxA.Err() == nil || ctxB.Err() == nil {
		t.Fatal("job contexts not stopped on shutdown")
	}
	if got := len(r.ActiveIDs()); got != 0 {
		t.Fatalf("%d jobs still registered after shutdown", got)
	}
}
