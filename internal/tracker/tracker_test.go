package tracker

import (
	"errors"
	"strings"
	"testing"
	"time"

	"splice/internal/services"
)

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-events:
		if !ok {
			t.Fatal("event stream closed unexpectedly")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestCreateJobEmitsStarted(t *testing.T) {
	tr := New(nil)
	events := tr.Events()

	id, err := tr.CreateJob("First Render", "/out/final.mp4", 250)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if id == "" {
		t.Fatal("CreateJob returned empty id")
	}

	evt := nextEvent(t, events)
	if evt.Type != EventJobStarted {
		t.Fatalf("event type: got %s, want %s", evt.Type, EventJobStarted)
	}
	if evt.JobID != id {
		t.Fatalf("event job id: got %s, want %s", evt.JobID, id)
	}
	if evt.Sequence == 0 {
		t.Fatal("events must carry sequence numbers")
	}
}

func TestCreateJobRequiresName(t *testing.T) {
	tr := New(nil)
	if _, err := tr.CreateJob("   ", "/out.mp4", 10); err == nil {
		t.Fatal("expected error for blank job name")
	}
}

func TestUpdateProgressClampsFrames(t *testing.T) {
	tr := New(nil)
	go func() {
		for range tr.Events() {
		}
	}()

	id, err := tr.CreateJob("clamp", "/out.mp4", 100)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := tr.UpdateProgress(id, 150, "encoding", ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	p, ok := tr.GetProgress(id)
	if !ok {
		t.Fatal("job should still be active")
	}
	if p.CurrentFrame != 100 {
		t.Fatalf("frame should clamp to total: got %d", p.CurrentFrame)
	}
	if p.Percent != 100 {
		t.Fatalf("percent at clamp: got %f, want 100", p.Percent)
	}

	if err := tr.UpdateProgress(id, -5, "encoding", ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	p, _ = tr.GetProgress(id)
	if p.CurrentFrame != 0 {
		t.Fatalf("negative frame should clamp to zero: got %d", p.CurrentFrame)
	}
}

func TestPercentZeroWhenNoFrames(t *testing.T) {
	tr := New(nil)
	go func() {
		for range tr.Events() {
		}
	}()

	id, err := tr.CreateJob("frameless", "/out.mp4", 0)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	p, ok := tr.GetProgress(id)
	if !ok {
		t.Fatal("job should be active")
	}
	if p.Percent != 0 {
		t.Fatalf("percent with zero total frames: got %f, want 0", p.Percent)
	}
}

func TestEstimatedRemainingTime(t *testing.T) {
	tr := New(nil)
	go func() {
		for range tr.Events() {
		}
	}()

	base := time.Now()
	tr.now = func() time.Time { return base }

	id, err := tr.CreateJob("eta", "/out.mp4", 100)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	tr.now = func() time.Time { return base.Add(10 * time.Second) }
	if err := tr.UpdateProgress(id, 25, "encoding", ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	p, _ := tr.GetProgress(id)
	if p.Elapsed != 10*time.Second {
		t.Fatalf("elapsed: got %s, want 10s", p.Elapsed)
	}
	if p.Remaining != 30*time.Second {
		t.Fatalf("remaining at 25%% after 10s: got %s, want 30s", p.Remaining)
	}
}

func TestGetProgressIdempotentWithPinnedClock(t *testing.T) {
	tr := New(nil)
	go func() {
		for range tr.Events() {
		}
	}()

	base := time.Now()
	tr.now = func() time.Time { return base }

	id, err := tr.CreateJob("idempotent", "/out.mp4", 100)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := tr.UpdateProgress(id, 40, "composition", "merging tracks"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	first, _ := tr.GetProgress(id)
	second, _ := tr.GetProgress(id)
	if first != second {
		t.Fatalf("projection changed without updates:\n%+v\n%+v", first, second)
	}
}

func TestUnknownJobOperationsFail(t *testing.T) {
	tr := New(nil)

	if err := tr.UpdateProgress("missing", 1, "", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("UpdateProgress unknown id: got %v", err)
	} else if !strings.Contains(err.Error(), "update progress") {
		t.Fatalf("error should name the operation: %v", err)
	}
	if err := tr.CompleteJob("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("CompleteJob unknown id: got %v", err)
	}
	if err := tr.FailJob("missing", "boom"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("FailJob unknown id: got %v", err)
	}
	if err := tr.CancelJob("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("CancelJob unknown id: got %v", err)
	}
}

func TestCompleteRemovesJobAndEmits(t *testing.T) {
	tr := New(nil)
	events := tr.Events()

	id, err := tr.CreateJob("finish", "/out/final.mp4", 50)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if evt := nextEvent(t, events); evt.Type != EventJobStarted {
		t.Fatalf("expected job_started, got %s", evt.Type)
	}

	if err := tr.CompleteJob(id); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	evt := nextEvent(t, events)
	if evt.Type != EventJobCompleted {
		t.Fatalf("expected job_completed, got %s", evt.Type)
	}
	if evt.OutputPath != "/out/final.mp4" {
		t.Fatalf("completion output path: got %q", evt.OutputPath)
	}
	if evt.Duration < 0 {
		t.Fatalf("completion duration negative: %s", evt.Duration)
	}

	if _, ok := tr.GetProgress(id); ok {
		t.Fatal("terminal job must leave the registry")
	}
	if err := tr.CompleteJob(id); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("double complete should fail with not found, got %v", err)
	}
	if err := tr.UpdateProgress(id, 10, "", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("update after terminal status should fail, got %v", err)
	}
}

func TestFailJobCarriesMessageVerbatim(t *testing.T) {
	tr := New(nil)
	events := tr.Events()

	id, err := tr.CreateJob("doomed", "/out.mp4", 50)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	nextEvent(t, events)

	message := "stage encoding failed for job: encoder exited with code 187"
	if err := tr.FailJob(id, message); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	evt := nextEvent(t, events)
	if evt.Type != EventJobFailed {
		t.Fatalf("expected job_failed, got %s", evt.Type)
	}
	if evt.Error != message {
		t.Fatalf("failure text must be verbatim: got %q", evt.Error)
	}
}

func TestCancelJobEmits(t *testing.T) {
	tr := New(nil)
	events := tr.Events()

	id, err := tr.CreateJob("stopped", "/out.mp4", 50)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	nextEvent(t, events)

	if err := tr.CancelJob(id); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	evt := nextEvent(t, events)
	if evt.Type != EventJobCancelled {
		t.Fatalf("expected job_cancelled, got %s", evt.Type)
	}
	if evt.JobID != id {
		t.Fatalf("cancellation job id: got %s, want %s", evt.JobID, id)
	}
}

func TestEventOrderPerJob(t *testing.T) {
	tr := New(nil)
	events := tr.Events()

	id, err := tr.CreateJob("ordered", "/out.mp4", 100)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	for _, frame := range []int64{10, 20, 30} {
		if err := tr.UpdateProgress(id, frame, "encoding", ""); err != nil {
			t.Fatalf("UpdateProgress(%d): %v", frame, err)
		}
	}
	if err := tr.CompleteJob(id); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	wantTypes := []EventType{
		EventJobStarted,
		EventProgressChanged,
		EventProgressChanged,
		EventProgressChanged,
		EventJobCompleted,
	}
	var lastSeq uint64
	var lastFrame int64
	for i, want := range wantTypes {
		evt := nextEvent(t, events)
		if evt.Type != want {
			t.Fatalf("event %d: got %s, want %s", i, evt.Type, want)
		}
		if evt.Sequence <= lastSeq {
			t.Fatalf("sequence must increase: %d after %d", evt.Sequence, lastSeq)
		}
		lastSeq = evt.Sequence
		if evt.Type == EventProgressChanged {
			if evt.Progress == nil {
				t.Fatal("progress events must carry a projection")
			}
			if evt.Progress.CurrentFrame <= lastFrame {
				t.Fatalf("frames must advance in publish order: %d after %d",
					evt.Progress.CurrentFrame, lastFrame)
			}
			lastFrame = evt.Progress.CurrentFrame
		}
	}
}

func TestProducersNeverBlockWithoutConsumer(t *testing.T) {
	tr := New(nil)

	id, err := tr.CreateJob("unread", "/out.mp4", 1000)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	for frame := int64(1); frame <= 200; frame++ {
		if err := tr.UpdateProgress(id, frame, "encoding", ""); err != nil {
			t.Fatalf("UpdateProgress(%d): %v", frame, err)
		}
	}
	if err := tr.CompleteJob(id); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

func TestCloseFlushesBufferedEvents(t *testing.T) {
	tr := New(nil)

	id, err := tr.CreateJob("flush", "/out.mp4", 10)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := tr.UpdateProgress(id, 5, "encoding", ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	tr.Close()

	count := 0
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-tr.Events():
			if !ok {
				if count < 2 {
					t.Fatalf("stream closed after %d events, want at least 2", count)
				}
				return
			}
			count++
		case <-deadline:
			t.Fatal("timed out draining closed stream")
		}
	}
}

func TestListJobsOldestFirst(t *testing.T) {
	tr := New(nil)
	go func() {
		for range tr.Events() {
		}
	}()

	base := time.Now()
	tick := 0
	tr.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, _ := tr.CreateJob("first", "/out/a.mp4", 10)
	second, _ := tr.CreateJob("second", "/out/b.mp4", 10)

	jobs := tr.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("ListJobs: got %d jobs, want 2", len(jobs))
	}
	if jobs[0].JobID != first || jobs[1].JobID != second {
		t.Fatalf("jobs out of order: %s, %s", jobs[0].JobID, jobs[1].JobID)
	}
	if tr.ActiveCount() != 2 {
		t.Fatalf("ActiveCount: got %d, want 2", tr.ActiveCount())
	}
}

func TestStageLabel(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"validation", "Validation"},
		{"preprocessing", "Preprocessing"},
		{"  encoding  ", "Encoding"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StageLabel(tc.input); got != tc.want {
			t.Fatalf("StageLabel(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Processing "); !ok || status != StatusProcessing {
		t.Fatalf("ParseStatus: got %q, %v", status, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Fatal("ParseStatus should reject unknown values")
	}
	if !IsTerminal(StatusFailed) || IsTerminal(StatusProcessing) {
		t.Fatal("IsTerminal misclassifies statuses")
	}
}
