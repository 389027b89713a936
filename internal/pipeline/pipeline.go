package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"splice/internal/artifactcache"
	"splice/internal/config"
	"splice/internal/logging"
	"splice/internal/services"
	"splice/internal/services/ffmpeg"
	"splice/internal/tracker"
)

// Pipeline drives a job through its stages in order. Cancellation is
// honored only between stages; a stage that has started always runs to
// completion before the pipeline gives up.
type Pipeline struct {
	stages  []Stage
	tracker *tracker.Tracker
	logger  *zap.Logger
}

func New(stages []Stage, tr *tracker.Tracker, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		stages:  stages,
		tracker: tr,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}
}

// DefaultStages assembles the standard five-stage render sequence.
func DefaultStages(cfg *config.Config, cache *artifactcache.Cache, builder ffmpeg.Builder, runner Runner, tr *tracker.Tracker, logger *zap.Logger) []Stage {
	return []Stage{
		NewValidationStage(cfg, logger),
		NewPreprocessingStage(cfg.Encoder.FFprobeBinary, cache, logger),
		NewCompositionStage(builder, logger),
		NewEncodingStage(builder, runner, tr, logger),
		NewFinalizationStage(cfg.Render.KeepWorkspaces, cache, logger),
	}
}

// Run executes every stage against pc and returns the final output path.
// Stage failures come back as a RenderError naming the job and stage;
// cancellation between stages comes back tagged ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, pc *Context) (string, error) {
	if len(p.stages) == 0 {
		return "", services.Wrap(services.ErrValidation, "pipeline", "run", "no stages configured", nil)
	}

	totalFrames := p.totalFrames(pc.JobID)
	p.logger.Debug("pipeline starting",
		zap.String(logging.FieldJobID, pc.JobID),
		zap.Int("stage_count", len(p.stages)),
		zap.Duration("estimated_duration", p.estimateTotal(pc)))

	for i, st := range p.stages {
		if err := p.checkCancelled(ctx, pc, st.Name()); err != nil {
			return "", err
		}

		p.reportBoundary(pc.JobID, boundaryFrames(totalFrames, i, len(p.stages)), st.Name())

		if st.CanSkip(pc) {
			p.logger.Info("stage skipped",
				zap.String(logging.FieldJobID, pc.JobID),
				zap.String(logging.FieldStage, st.Name()))
			continue
		}

		started := time.Now()
		pc.Stats.MarkStageStart(st.Name(), started)
		p.logger.Info("stage started",
			zap.String(logging.FieldJobID, pc.JobID),
			zap.String(logging.FieldStage, st.Name()),
			zap.String(logging.FieldEventType, "stage_start"))

		stageCtx := services.WithStage(ctx, st.Name())
		if err := st.Process(stageCtx, pc); err != nil {
			pc.Stats.RecordError()
			p.logger.Error("stage failed",
				zap.String(logging.FieldJobID, pc.JobID),
				zap.String(logging.FieldStage, st.Name()),
				zap.Duration("stage_duration", time.Since(started)),
				zap.Error(err))
			if errors.Is(err, services.ErrCancelled) {
				return "", err
			}
			return "", services.NewRenderError(pc.JobID, st.Name(), "", err)
		}

		p.logger.Info("stage completed",
			zap.String(logging.FieldJobID, pc.JobID),
			zap.String(logging.FieldStage, st.Name()),
			zap.String(logging.FieldEventType, "stage_complete"),
			zap.Duration("stage_duration", time.Since(started)))
	}

	p.reportDone(pc.JobID, totalFrames)
	return pc.OutputPath, nil
}

// checkCancelled is the cooperative cancellation point. It runs before
// each stage, never during one.
func (p *Pipeline) checkCancelled(ctx context.Context, pc *Context, next string) error {
	if pc.Cancelled() {
		return services.Wrap(services.ErrCancelled, "pipeline", "run",
			fmt.Sprintf("job %s cancelled before stage %s", pc.JobID, next), nil)
	}
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, "pipeline", "run",
			fmt.Sprintf("job %s cancelled before stage %s", pc.JobID, next), err)
	}
	return nil
}

func (p *Pipeline) totalFrames(jobID string) int64 {
	if p.tracker == nil {
		return 0
	}
	if prog, ok := p.tracker.GetProgress(jobID); ok {
		return prog.TotalFrames
	}
	return 0
}

func (p *Pipeline) reportBoundary(jobID string, frames int64, stage string) {
	if p.tracker == nil {
		return
	}
	message := tracker.StageLabel(stage) + " started"
	if err := p.tracker.UpdateProgress(jobID, frames, stage, message); err != nil {
		p.logger.Debug("progress update dropped",
			zap.String(logging.FieldJobID, jobID),
			zap.String(logging.FieldStage, stage),
			zap.Error(err))
	}
}

func (p *Pipeline) reportDone(jobID string, totalFrames int64) {
	if p.tracker == nil {
		return
	}
	if err := p.tracker.UpdateProgress(jobID, totalFrames, StageFinalization, "render complete"); err != nil {
		p.logger.Debug("progress update dropped",
			zap.String(logging.FieldJobID, jobID),
			zap.Error(err))
	}
}

func (p *Pipeline) estimateTotal(pc *Context) time.Duration {
	var total time.Duration
	for _, st := range p.stages {
		total += st.EstimatedDuration(pc)
	}
	return total
}

// boundaryFrames converts "i of n stages complete" into the frame scale
// the tracker reports in, so boundary progress and encoder progress share
// one unit.
func boundaryFrames(totalFrames int64, completed, stages int) int64 {
	if totalFrames <= 0 || stages <= 0 {
		return 0
	}
	return totalFrames * int64(completed) / int64(stages)
}
