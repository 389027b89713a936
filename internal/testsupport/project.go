package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"splice/internal/project"
)

// NewProject returns a minimal valid project backed by a real source file in
// a fresh temp directory.
func NewProject(t testing.TB) *project.Project {
	t.Helper()

	dir := t.TempDir()
	source := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(source, []byte("media-bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	return &project.Project{
		ID:      "proj-test",
		Name:    "Test Project",
		Sources: []project.Source{{ID: "a", Path: source}},
		Tracks: []project.Track{
			{ID: "v1", Kind: "video", Clips: []project.Clip{{SourceID: "a", In: 0, Out: 4}}},
		},
		Settings: project.Settings{Width: 640, Height: 360, FPS: 25, Duration: 4, Codec: "h264", Bitrate: "2M"},
	}
}
