package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"splice/internal/artifactcache"
	"splice/internal/services"
)

func TestFinalizationMovesOutputAndRecordsArtifact(t *testing.T) {
	work := t.TempDir()
	encoded := filepath.Join(work, "encoded.mp4")
	payload := []byte("render-payload")
	if err := os.WriteFile(encoded, payload, 0o644); err != nil {
		t.Fatalf("write encoded: %v", err)
	}
	output := filepath.Join(t.TempDir(), "final", "render.mp4")

	pc := NewContext("job-1", renderProject("/media/a.mp4"), output)
	pc.WorkDir = work
	pc.SetFile("encoded", encoded)

	cache := metadataCache(t)
	stage := NewFinalizationStage(false, cache, nil)
	if err := stage.Process(context.Background(), pc); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("output content = %q, want %q", got, payload)
	}

	if _, err := os.Stat(work); !os.IsNotExist(err) {
		t.Fatalf("workspace survived cleanup: %v", err)
	}
	if pc.WorkDir != "" {
		t.Fatalf("work dir still recorded: %q", pc.WorkDir)
	}

	value, ok := cache.Get(artifactcache.RegionRender, "job-1")
	if !ok {
		t.Fatal("no artifact cached for job")
	}
	artifact := value.(RenderArtifact)
	if artifact.OutputPath != output {
		t.Fatalf("artifact output = %q, want %q", artifact.OutputPath, output)
	}
	if artifact.SizeBytes != int64(len(payload)) {
		t.Fatalf("artifact size = %d, want %d", artifact.SizeBytes, len(payload))
	}
}

func TestFinalizationMissingEncodedEntryFails(t *testing.T) {
	pc := NewContext("job-1", renderProject("/media/a.mp4"), filepath.Join(t.TempDir(), "out.mp4"))
	pc.WorkDir = t.TempDir()

	err := NewFinalizationStage(false, nil, nil).Process(context.Background(), pc)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("error = %v, want io failure", err)
	}
	if !strings.Contains(err.Error(), "no encoded file recorded") {
		t.Fatalf("error message %q lacks cause", err)
	}
}

func TestFinalizationMissingEncodedFileFails(t *testing.T) {
	pc := NewContext("job-1", renderProject("/media/a.mp4"), filepath.Join(t.TempDir(), "out.mp4"))
	pc.WorkDir = t.TempDir()
	pc.SetFile("encoded", filepath.Join(pc.WorkDir, "never-written.mp4"))

	err := NewFinalizationStage(false, nil, nil).Process(context.Background(), pc)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("error = %v, want io failure", err)
	}
}

func TestFinalizationEmptyOutputFails(t *testing.T) {
	work := t.TempDir()
	encoded := filepath.Join(work, "encoded.mp4")
	if err := os.WriteFile(encoded, nil, 0o644); err != nil {
		t.Fatalf("write encoded: %v", err)
	}

	pc := NewContext("job-1", renderProject("/media/a.mp4"), filepath.Join(t.TempDir(), "out.mp4"))
	pc.WorkDir = work
	pc.SetFile("encoded", encoded)

	err := NewFinalizationStage(false, nil, nil).Process(context.Background(), pc)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("error = %v, want io failure", err)
	}
	if !strings.Contains(err.Error(), "output file is empty") {
		t.Fatalf("error message %q lacks cause", err)
	}
}

func TestFinalizationKeepsWorkspaceWhenConfigured(t *testing.T) {
	work := t.TempDir()
	encoded := filepath.Join(work, "encoded.mp4")
	if err := os.WriteFile(encoded, []byte("x"), 0o644); err != nil {
		t.Fatalf("write encoded: %v", err)
	}

	pc := NewContext("job-1", renderProject("/media/a.mp4"), filepath.Join(t.TempDir(), "out.mp4"))
	pc.WorkDir = work
	pc.SetFile("encoded", encoded)

	if err := NewFinalizationStage(true, nil, nil).Process(context.Background(), pc); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := os.Stat(work); err != nil {
		t.Fatalf("workspace should survive: %v", err)
	}
}
