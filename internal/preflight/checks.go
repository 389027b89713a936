package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"splice/internal/config"
	"splice/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckHardwareAccel reports whether the configured hardware acceleration
// method is offered by the ffmpeg build. The "auto" and "none" modes always
// pass because the encoder resolves them at render time.
func CheckHardwareAccel(ctx context.Context, cfg *config.Config) Result {
	const name = "Hardware acceleration"

	mode := strings.ToLower(strings.TrimSpace(cfg.Encoder.HardwareAccel))
	switch mode {
	case "", "none":
		return Result{Name: name, Passed: true, Detail: "disabled"}
	case "auto":
		return Result{Name: name, Passed: true, Detail: "auto-detect"}
	}

	methods := deps.HardwareAccels(ctx, cfg.Encoder.FFmpegBinary)
	if len(methods) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("ffmpeg reports no hardware acceleration methods (wanted %q)", mode)}
	}
	for _, method := range methods {
		if strings.EqualFold(method, mode) {
			return Result{Name: name, Passed: true, Detail: mode}
		}
	}
	return Result{Name: name, Detail: fmt.Sprintf("method %q not offered by ffmpeg (available: %s)", mode, strings.Join(methods, ", "))}
}

// CheckSystemDeps evaluates the external binaries the renderer shells out
// to. Shared by the daemon and the CLI status command. Available binaries
// carry their version banner as the detail so status output can show what
// build is on the PATH.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Encoder.FFmpegBinary,
			Description: "Required for encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Encoder.FFprobeBinary,
			Description: "Required for media inspection",
		},
	}
	results := deps.CheckBinaries(requirements)
	for i := range results {
		if !results[i].Available {
			continue
		}
		if version := deps.Version(ctx, results[i].Command); version != "" {
			results[i].Detail = version
		}
	}
	return results
}
