package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStatusLineAlignsLabels(t *testing.T) {
	line := renderStatusLine("Database", statusInfo, "/tmp/splice.db", false)
	if !strings.HasPrefix(line, "  Database:") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "[INFO] /tmp/splice.db") {
		t.Fatalf("expected INFO status text, got %q", line)
	}
	if strings.Contains(line, ansiReset) {
		t.Fatalf("uncolored line carries ANSI codes: %q", line)
	}
}

func TestRenderStatusLineColors(t *testing.T) {
	line := renderStatusLine("Splice", statusOK, "Running", true)
	if !strings.HasPrefix(line, ansiGreen) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected green wrapped line, got %q", line)
	}
}

func TestRenderStatusLineWithoutMessage(t *testing.T) {
	line := renderStatusLine("Check", statusError, "", false)
	if !strings.Contains(line, "[ERROR]") {
		t.Fatalf("expected bare ERROR marker, got %q", line)
	}
}

func TestStatusKindLabels(t *testing.T) {
	cases := []struct {
		kind statusKind
		want string
	}{
		{statusInfo, "INFO"},
		{statusOK, "OK"},
		{statusWarn, "WARN"},
		{statusError, "ERROR"},
	}
	for _, tc := range cases {
		if got := statusKindLabel(tc.kind); got != tc.want {
			t.Errorf("statusKindLabel(%d) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Cache", false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "== Cache ==" {
		t.Errorf("header = %q, want %q", lines[0], "== Cache ==")
	}
	if lines[1] != strings.Repeat("-", len(lines[0])) {
		t.Errorf("rule = %q does not match header width", lines[1])
	}
}

func TestShouldColorizeBuffer(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffer writer must not colorize")
	}
}

func TestStatusKindFromResult(t *testing.T) {
	if got := statusKindFromResult(true); got != statusOK {
		t.Errorf("statusKindFromResult(true) = %d, want statusOK", got)
	}
	if got := statusKindFromResult(false); got != statusError {
		t.Errorf("statusKindFromResult(false) = %d, want statusError", got)
	}
}
