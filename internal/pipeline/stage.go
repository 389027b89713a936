package pipeline

import (
	"context"
	"time"

	"splice/internal/services/ffmpeg"
)

// Stage names, in execution order.
const (
	StageValidation    = "validation"
	StagePreprocessing = "preprocessing"
	StageComposition   = "composition"
	StageEncoding      = "encoding"
	StageFinalization  = "finalization"
)

// Stage is one ordered unit of the render pipeline.
type Stage interface {
	// Name returns the stage's machine label.
	Name() string
	// Process runs the stage's work over the job context.
	Process(ctx context.Context, pc *Context) error
	// EstimatedDuration guesses how long Process will take for this job.
	EstimatedDuration(pc *Context) time.Duration
	// CanSkip reports whether the stage's work is already satisfied.
	CanSkip(pc *Context) bool
}

// Runner abstracts the encoder executor so tests can substitute one.
type Runner interface {
	Run(ctx context.Context, args []string, onProgress func(ffmpeg.Progress)) error
}
