package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"splice/internal/project"
)

func snapshotProject() *project.Project {
	return &project.Project{
		ID:   "proj-1",
		Name: "Snapshot",
		Sources: []project.Source{
			{ID: "a", Path: "/media/a.mp4"},
		},
		Tracks: []project.Track{
			{ID: "v1", Kind: "video", Clips: []project.Clip{{SourceID: "a", In: 0, Out: 5}}},
		},
		Settings: project.Settings{Width: 640, Height: 360, FPS: 25, Duration: 5},
	}
}

func TestNewContextSnapshotsProject(t *testing.T) {
	original := snapshotProject()
	pc := NewContext("job-1", original, "  /out/final.mp4  ")

	original.Sources[0].Path = "/media/changed.mp4"
	original.Tracks[0].Clips[0].Out = 99

	if pc.Project.Sources[0].Path != "/media/a.mp4" {
		t.Fatalf("context project mutated through caller: %q", pc.Project.Sources[0].Path)
	}
	if pc.Project.Tracks[0].Clips[0].Out != 5 {
		t.Fatalf("context clip mutated through caller: %v", pc.Project.Tracks[0].Clips[0].Out)
	}
	if pc.OutputPath != "/out/final.mp4" {
		t.Fatalf("output path not trimmed: %q", pc.OutputPath)
	}
}

func TestContextFileTable(t *testing.T) {
	pc := NewContext("job-1", snapshotProject(), "/out/final.mp4")

	pc.SetFile("encoded", "/tmp/encoded.mp4")
	pc.SetFile("   ", "/tmp/ignored")

	path, ok := pc.File("encoded")
	if !ok || path != "/tmp/encoded.mp4" {
		t.Fatalf("File(encoded) = %q, %v", path, ok)
	}
	if _, ok := pc.File("missing"); ok {
		t.Fatal("unexpected hit for missing name")
	}

	files := pc.Files()
	if len(files) != 1 {
		t.Fatalf("expected 1 recorded file, got %d", len(files))
	}
	files["encoded"] = "/tmp/other"
	if path, _ := pc.File("encoded"); path != "/tmp/encoded.mp4" {
		t.Fatal("Files() exposed internal map")
	}
}

func TestContextScratch(t *testing.T) {
	pc := NewContext("job-1", snapshotProject(), "/out/final.mp4")

	pc.SetScratch("duration:a", 9.5)
	value, ok := pc.Scratch("duration:a")
	if !ok {
		t.Fatal("expected scratch hit")
	}
	if got := value.(float64); got != 9.5 {
		t.Fatalf("scratch value = %v, want 9.5", got)
	}
	if _, ok := pc.Scratch("absent"); ok {
		t.Fatal("unexpected scratch hit")
	}
}

func TestContextCancelFlag(t *testing.T) {
	pc := NewContext("job-1", snapshotProject(), "/out/final.mp4")
	if pc.Cancelled() {
		t.Fatal("new context already cancelled")
	}
	pc.Cancel()
	if !pc.Cancelled() {
		t.Fatal("cancel flag not set")
	}
}

func TestCreateWorkDirAndCleanup(t *testing.T) {
	base := t.TempDir()
	pc := NewContext("job-1", snapshotProject(), "/out/final.mp4")

	if err := pc.CreateWorkDir(base); err != nil {
		t.Fatalf("CreateWorkDir: %v", err)
	}
	if pc.WorkDir == "" {
		t.Fatal("work dir not recorded")
	}
	if filepath.Dir(pc.WorkDir) != base {
		t.Fatalf("work dir %q not under %q", pc.WorkDir, base)
	}
	if !strings.Contains(filepath.Base(pc.WorkDir), "job-1") {
		t.Fatalf("work dir %q does not name the job", pc.WorkDir)
	}
	if !strings.Contains(filepath.Base(pc.WorkDir), "snapshot") {
		t.Fatalf("work dir %q does not carry the project token", pc.WorkDir)
	}

	first := pc.WorkDir
	if err := pc.CreateWorkDir(base); err != nil {
		t.Fatalf("second CreateWorkDir: %v", err)
	}
	if pc.WorkDir != first {
		t.Fatal("second CreateWorkDir replaced the directory")
	}

	if err := pc.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if pc.WorkDir != "" {
		t.Fatalf("work dir still set after cleanup: %q", pc.WorkDir)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("work dir still on disk: %v", err)
	}
	if err := pc.Cleanup(); err != nil {
		t.Fatalf("repeat Cleanup: %v", err)
	}
}
