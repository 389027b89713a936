package main

import (
	"os"
	"path/filepath"
	"testing"

	"splice/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	// config validate works even if file exists
	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path:")
	requireContains(t, out, "Configuration valid")

	// config init to temp location
	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// a second init without --overwrite refuses to clobber the file
	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for existing config file")
	}
	requireContains(t, err.Error(), "already exists")

	out, _, err = runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
}

func TestConfigShowPrintsActiveValues(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# config: "+env.configPath)
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.cfg.Paths.DataDir)
	requireContains(t, out, "[encoder]")
}

func TestConfigPathPrintsResolvedPath(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "path"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if got, want := out, env.configPath+"\n"; got != want {
		t.Fatalf("config path output = %q, want %q", got, want)
	}
}

func TestConfigPathMissingFileHints(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(t.TempDir(), "nope.toml")
	out, errOut, err := runCLI(t, []string{"config", "path"}, env.socketPath, missing)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, missing)
	requireContains(t, errOut, "does not exist")
}

func TestConfigCheckWithStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRenderStubBinaries())

	out, _, err := runCLI(t, []string{"config", "check"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	requireContains(t, out, "== Environment ==")
	requireContains(t, out, "Data directory")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "[OK]")
}
