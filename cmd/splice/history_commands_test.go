package main

import (
	"testing"
)

func TestHistoryListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"history", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, stdout, "No render history")
}

func TestHistoryShowUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"history", "show", "missing-job"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	requireContains(t, err.Error(), "no history entry for job missing-job")
}

func TestHistoryClearEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"history", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, stdout, "Removed 0 history entries")
}

func TestHistoryHealthReport(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"history", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history health: %v", err)
	}
	requireContains(t, stdout, "[OK] yes")
	requireContains(t, stdout, "Integrity")
	requireContains(t, stdout, "Entries")
}
