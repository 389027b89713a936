package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"splice/internal/logging"
	"splice/internal/services"
)

// commandContext is swapped in tests to avoid spawning a real ffmpeg.
var commandContext = exec.CommandContext

// Stderr lines retained for diagnostics when the encoder fails. Progress
// lines are filtered out first, so the tail holds actual error text.
const stderrTailLines = 40

// Executor runs the ffmpeg binary and forwards progress samples.
type Executor struct {
	binary string
	logger *zap.Logger
}

// NewExecutor constructs an Executor for the given binary.
func NewExecutor(binary string, logger *zap.Logger) *Executor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{binary: binary, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// Run launches the encoder with the provided arguments, invoking onProgress
// for every status line until the process exits. A non-zero exit produces an
// EncoderError carrying the exit code, the stderr tail, and the rendered
// command; a context cancellation produces a cancelled error instead.
func (e *Executor) Run(ctx context.Context, args []string, onProgress func(Progress)) error {
	if len(args) == 0 {
		return services.Wrap(services.ErrEncoder, "ffmpeg", "run", "no arguments", nil)
	}

	logger := logging.WithContext(ctx, e.logger)
	command := e.binary + " " + strings.Join(args, " ")
	cmd := commandContext(ctx, e.binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrEncoder, "ffmpeg", "run", "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrEncoder, "ffmpeg", "run", "start process", err)
	}

	logger.Debug("encoder started", zap.String("command", command))

	tail := make([]string, 0, stderrTailLines)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		line := scanner.Text()
		if IsProgressLine(line) {
			if onProgress != nil {
				onProgress(ParseProgress(line))
			}
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if len(tail) == stderrTailLines {
				tail = tail[1:]
			}
			tail = append(tail, trimmed)
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if waitErr == nil {
		if scanErr != nil {
			return services.Wrap(services.ErrEncoder, "ffmpeg", "run", "read output", scanErr)
		}
		return nil
	}

	if ctx.Err() != nil {
		return services.Wrap(services.ErrCancelled, "ffmpeg", "run", "encoder interrupted", ctx.Err())
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	encErr := &services.EncoderError{
		ExitCode: exitCode,
		Stderr:   strings.Join(tail, "\n"),
		Command:  command,
	}
	logger.Warn("encoder failed",
		zap.Int("exit_code", exitCode),
		zap.Bool("gpu_related", encErr.GPURelated()))
	return fmt.Errorf("%w: %w", encErr, waitErr)
}

// scanStatusLines splits on both newlines and carriage returns. FFmpeg
// rewrites its status line in place with bare CRs, which the default
// bufio.ScanLines would accumulate into one giant token.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
