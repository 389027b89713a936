package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"splice/internal/services"
	"splice/internal/services/ffmpeg"
	"splice/internal/tracker"
)

type fakeRunner struct {
	frames []int64
	err    error
	args   []string
}

func (r *fakeRunner) Run(ctx context.Context, args []string, onProgress func(ffmpeg.Progress)) error {
	r.args = args
	for _, frame := range r.frames {
		onProgress(ffmpeg.Progress{Frame: frame, FPS: 25, Speed: 0.9})
	}
	return r.err
}

func encodingContext(t *testing.T, jobID string) *Context {
	t.Helper()
	pc := NewContext(jobID, renderProject("/media/a.mp4"), "/out/final.mp4")
	pc.WorkDir = t.TempDir()
	pc.Composition = &CompositionResult{FilterGraph: "[0:v]null[vout]"}
	return pc
}

func TestEncodingStageFeedsTrackerFrames(t *testing.T) {
	tr := tracker.New(nil)
	defer tr.Close()
	go func() {
		for range tr.Events() {
		}
	}()

	jobID, err := tr.CreateJob("encode", "/out/final.mp4", 100)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	pc := encodingContext(t, jobID)
	runner := &fakeRunner{frames: []int64{10, 50}}
	stage := NewEncodingStage(ffmpeg.NewGraphBuilder("none", ""), runner, tr, nil)

	if err := stage.Process(context.Background(), pc); err != nil {
		t.Fatalf("Process: %v", err)
	}

	prog, ok := tr.GetProgress(jobID)
	if !ok {
		t.Fatal("job vanished from tracker")
	}
	if prog.CurrentFrame != 50 {
		t.Fatalf("CurrentFrame = %d, want 50", prog.CurrentFrame)
	}
	if prog.Stage != StageEncoding {
		t.Fatalf("stage = %q, want %q", prog.Stage, StageEncoding)
	}
	if !strings.Contains(prog.Message, "fps") {
		t.Fatalf("message %q lacks encoder telemetry", prog.Message)
	}

	if pc.Stats.FramesProcessed != 50 {
		t.Fatalf("FramesProcessed = %d, want 50", pc.Stats.FramesProcessed)
	}
	encoded, ok := pc.File("encoded")
	if !ok || !strings.HasPrefix(encoded, pc.WorkDir) || !strings.HasSuffix(encoded, ".mp4") {
		t.Fatalf("encoded path = %q, %v", encoded, ok)
	}
	if !strings.Contains(strings.Join(runner.args, " "), "-filter_complex") {
		t.Fatalf("runner args missing filter graph: %v", runner.args)
	}
}

func TestEncodingStageRequiresComposition(t *testing.T) {
	pc := NewContext("job-1", renderProject("/media/a.mp4"), "/out/final.mp4")
	pc.WorkDir = t.TempDir()

	err := NewEncodingStage(ffmpeg.NewGraphBuilder("none", ""), &fakeRunner{}, nil, nil).
		Process(context.Background(), pc)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation failure", err)
	}
	if !strings.Contains(err.Error(), "no composition result") {
		t.Fatalf("error message %q lacks cause", err)
	}
}

func TestEncodingStagePropagatesEncoderError(t *testing.T) {
	runner := &fakeRunner{
		frames: []int64{25},
		err:    &services.EncoderError{ExitCode: 1, Stderr: "Cannot load libcuda.so.1", Command: "ffmpeg -c:v h264_nvenc"},
	}
	pc := encodingContext(t, "job-1")

	err := NewEncodingStage(ffmpeg.NewGraphBuilder("none", ""), runner, nil, nil).
		Process(context.Background(), pc)
	if err == nil {
		t.Fatal("expected runner error to propagate")
	}

	var encErr *services.EncoderError
	if !errors.As(err, &encErr) {
		t.Fatalf("error %v does not expose EncoderError", err)
	}
	if !encErr.GPURelated() {
		t.Fatal("libcuda failure not classified as GPU related")
	}
	var renderErr *services.RenderError
	if errors.As(err, &renderErr) {
		t.Fatal("stage should not wrap with render context; the runner owns that")
	}
	if pc.Stats.FramesProcessed != 25 {
		t.Fatalf("frames before failure not recorded: %d", pc.Stats.FramesProcessed)
	}
}
