package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splice/internal/testsupport"
)

func writeProjectFile(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	p := testsupport.NewProject(t)
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal project: %v", err)
	}
	path := filepath.Join(env.baseDir, "project.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return path
}

func jobIDFromRenderOutput(t *testing.T, stdout string) string {
	t.Helper()
	for _, line := range strings.Split(stdout, "\n") {
		if rest, ok := strings.CutPrefix(line, "Render accepted: job "); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("no job id in output %q", stdout)
	return ""
}

func TestRenderLifecycleViaCLI(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRenderStubBinaries())
	projectPath := writeProjectFile(t, env)
	outputPath := filepath.Join(env.cfg.Paths.OutputDir, "cli-render.mp4")

	stdout, _, err := runCLI(t, []string{"render", projectPath, "--output", outputPath}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, stdout, "Render accepted: job ")
	requireContains(t, stdout, outputPath)
	jobID := jobIDFromRenderOutput(t, stdout)

	waitFor(t, 5*time.Second, func() bool {
		entries, err := env.daemon.History(context.Background(), 1)
		return err == nil && len(entries) > 0
	})

	stdout, _, err = runCLI(t, []string{"jobs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, stdout, "No live render jobs")

	stdout, _, err = runCLI(t, []string{"watch", jobID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("watch finished job: %v", err)
	}
	requireContains(t, stdout, "Render complete: "+outputPath)

	stdout, _, err = runCLI(t, []string{"history", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, stdout, "Test Project")
	requireContains(t, stdout, "completed")

	stdout, _, err = runCLI(t, []string{"history", "show", jobID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, stdout, "Test Project")
	requireContains(t, stdout, outputPath)

	stdout, _, err = runCLI(t, []string{"events"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, stdout, "job_started")
	requireContains(t, stdout, "job_completed")
}

func TestRenderRejectsMissingProjectFile(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"render", filepath.Join(env.baseDir, "absent.json")}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing project file")
	}
	requireContains(t, err.Error(), "read project file")
}

func TestRenderRejectsInvalidProject(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.baseDir, "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write broken project: %v", err)
	}

	_, _, err := runCLI(t, []string{"render", path}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for invalid project")
	}
}

func TestControlCommandsUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, name := range []string{"cancel", "pause", "resume"} {
		_, _, err := runCLI(t, []string{name, "missing-job"}, env.socketPath, env.configPath)
		if err == nil {
			t.Fatalf("%s: expected error for unknown job", name)
		}
		requireContains(t, err.Error(), "no live job")
	}
}

func TestWatchUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"watch", "missing-job"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	requireContains(t, err.Error(), "unknown job missing-job")
}

func TestWatchWithoutJobsFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"watch"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error with no live jobs")
	}
	requireContains(t, err.Error(), "no live render jobs")
}

func TestEventsEmptyStream(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"events"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, stdout, "No events")
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	deadSocket := filepath.Join(env.baseDir, "dead.sock")

	_, _, err := runCLI(t, []string{"jobs"}, deadSocket, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing socket")
	}
	requireContains(t, err.Error(), "splice start")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, stdout, "Notifications not configured")
}
