package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 3 * time.Second

// Version returns the banner line reported by an ffmpeg-family binary, or an
// empty string when the binary is missing or does not answer.
func Version(ctx context.Context, binary string) string {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return ""
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, binary, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line)
}

// HardwareAccels lists the hardware acceleration methods the ffmpeg build
// offers. The list comes from `ffmpeg -hwaccels`, which prints a header line
// followed by one method per line.
func HardwareAccels(ctx context.Context, binary string) []string {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, binary, "-hide_banner", "-hwaccels").Output()
	if err != nil {
		return nil
	}

	var methods []string
	seenHeader := false
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !seenHeader {
			if strings.HasPrefix(line, "Hardware acceleration methods") {
				seenHeader = true
			}
			continue
		}
		methods = append(methods, line)
	}
	return methods
}
