package services

import (
	"fmt"
	"strings"
)

// RenderError wraps a stage failure with the job and stage it occurred in.
// The pipeline produces exactly one RenderError per failed run; the renderer
// unwraps it to reach the underlying classification.
type RenderError struct {
	JobID   string
	Stage   string
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	base := fmt.Sprintf("stage %s failed for job %s", e.Stage, e.JobID)
	if msg := strings.TrimSpace(e.Message); msg != "" {
		base += ": " + msg
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *RenderError) Unwrap() error { return e.Err }

// NewRenderError tags err with the stage and job it aborted.
func NewRenderError(jobID, stage, message string, err error) *RenderError {
	return &RenderError{JobID: jobID, Stage: stage, Message: message, Err: err}
}

// EncoderError reports an external encoder process that exited abnormally.
// Stderr holds the tail of the process output and Command the rendered
// invocation, both kept for diagnostics and for GPU-failure classification.
type EncoderError struct {
	ExitCode int
	Stderr   string
	Command  string
}

func (e *EncoderError) Error() string {
	detail := lastStderrLine(e.Stderr)
	if detail == "" {
		return fmt.Sprintf("encoder exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("encoder exited with code %d: %s", e.ExitCode, detail)
}

func (e *EncoderError) Unwrap() error { return ErrEncoder }

// GPURelated reports whether the failure points at hardware-accelerated
// encoding rather than the input or the invocation.
func (e *EncoderError) GPURelated() bool {
	return matchGPUFailure(e.Stderr) || matchGPUFailure(e.Command)
}

// Retryable reports whether re-running the encoder could plausibly succeed.
// GPU failures are retryable on the software path; transient device and
// resource conditions are retryable as-is.
func (e *EncoderError) Retryable() bool {
	return e.GPURelated() || matchTransientFailure(e.Stderr)
}

func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
