// Package testsupport holds shared fixtures for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"splice/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxActiveJobs caps concurrent renders on the test config.
func WithMaxActiveJobs(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.MaxActiveJobs = limit
	}
}

// WithHistoryRetained caps the history table on the test config.
func WithHistoryRetained(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.HistoryRetained = limit
	}
}

// WithKeepWorkspaces preserves render workspaces after completion.
func WithKeepWorkspaces() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.KeepWorkspaces = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default splice external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WithRenderStubBinaries writes ffmpeg and ffprobe stand-ins that satisfy a
// complete pipeline pass: the ffprobe stub reports a short video container,
// and the ffmpeg stub emits one progress line and materializes its output
// file. The config's encoder binaries point at the stubs directly.
func WithRenderStubBinaries() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}

		ffprobe := filepath.Join(binDir, "ffprobe")
		ffprobeScript := "#!/bin/sh\n" +
			`printf '%s' '{"format":{"duration":"4.0","size":"2048"},"streams":[{"codec_type":"video","width":640,"height":360,"avg_frame_rate":"25/1"}]}'` + "\n"
		if err := os.WriteFile(ffprobe, []byte(ffprobeScript), 0o755); err != nil {
			b.t.Fatalf("write ffprobe stub: %v", err)
		}

		// The output file is the last encoder argument; option probes such
		// as -version end with a flag and must not create files.
		ffmpeg := filepath.Join(binDir, "ffmpeg")
		ffmpegScript := "#!/bin/sh\n" +
			"for arg; do out=$arg; done\n" +
			"case \"$out\" in\n-*) exit 0 ;;\nesac\n" +
			"printf 'frame=  100 fps=25.0 q=28.0 size=256kB time=00:00:04.00 bitrate=524.3kbits/s speed=1.0x\\n' >&2\n" +
			"printf 'encoded-bytes' > \"$out\"\n"
		if err := os.WriteFile(ffmpeg, []byte(ffmpegScript), 0o755); err != nil {
			b.t.Fatalf("write ffmpeg stub: %v", err)
		}

		b.cfg.Encoder.FFmpegBinary = ffmpeg
		b.cfg.Encoder.FFprobeBinary = ffprobe
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
