// Package renderer supervises render jobs end to end: admission through
// the registry, job creation in the tracker, pipeline execution in a
// background goroutine, and the single hardware-to-software retry after
// a GPU-related failure.
package renderer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"splice/internal/artifactcache"
	"splice/internal/config"
	"splice/internal/logging"
	"splice/internal/pipeline"
	"splice/internal/project"
	"splice/internal/registry"
	"splice/internal/services"
	"splice/internal/services/ffmpeg"
	"splice/internal/tracker"
)

// defaultFPS sizes the total-frame estimate when a project leaves its
// frame rate unset; the command builder falls back to the same rate.
const defaultFPS = 30.0

type runFunc func(ctx context.Context, pc *pipeline.Context) (string, error)

// Renderer is the job control surface the daemon exposes over IPC.
type Renderer struct {
	cfg      *config.Config
	tracker  *tracker.Tracker
	registry *registry.Registry
	logger   *zap.Logger

	// run executes one pipeline pass; swapped in tests.
	run runFunc

	mu   sync.Mutex
	base context.Context
	wg   sync.WaitGroup
}

// New wires the standard pipeline behind a renderer. The cache feeds the
// preprocessing and finalization stages.
func New(cfg *config.Config, tr *tracker.Tracker, reg *registry.Registry, cache *artifactcache.Cache, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	builder := ffmpeg.NewGraphBuilder(cfg.Encoder.HardwareAccel, cfg.Encoder.HardwareDevice)
	runner := ffmpeg.NewExecutor(cfg.Encoder.FFmpegBinary, logger)
	pipe := pipeline.New(pipeline.DefaultStages(cfg, cache, builder, runner, tr, logger), tr, logger)

	return &Renderer{
		cfg:      cfg,
		tracker:  tr,
		registry: reg,
		logger:   logging.NewComponentLogger(logger, "renderer"),
		run:      pipe.Run,
		base:     context.Background(),
	}
}

// Start pins the context new jobs derive theirs from. Jobs accepted
// before Start fall back to the background context.
func (r *Renderer) Start(ctx context.Context) {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()
}

func (r *Renderer) baseContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.base == nil {
		return context.Background()
	}
	return r.base
}

func (r *Renderer) frameRate() float64 {
	if r.cfg != nil && r.cfg.Render.DefaultFPS > 0 {
		return r.cfg.Render.DefaultFPS
	}
	return defaultFPS
}

// CreateRender validates the project, claims a concurrency slot, creates
// the job, and starts the pipeline in its own goroutine. A full registry
// rejects the render without creating anything.
func (r *Renderer) CreateRender(p *project.Project, outputPath string) (string, error) {
	if p == nil {
		return "", services.Wrap(services.ErrValidation, "renderer", "create render", "nil project", nil)
	}
	outputPath = strings.TrimSpace(outputPath)
	if outputPath == "" {
		return "", services.Wrap(services.ErrValidation, "renderer", "create render", "output path is empty", nil)
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	release, err := r.registry.Acquire()
	if err != nil {
		return "", err
	}

	jobID, err := r.tracker.CreateJob(p.Name, outputPath, p.EstimatedTotalFrames(r.frameRate()))
	if err != nil {
		release()
		return "", err
	}

	pc := pipeline.NewContext(jobID, p, outputPath)
	ctx, stop := context.WithCancel(services.WithJobID(r.baseContext(), jobID))
	if err := r.registry.Register(jobID, pc, stop); err != nil {
		stop()
		release()
		if failErr := r.tracker.FailJob(jobID, err.Error()); failErr != nil {
			r.logger.Warn("orphaned job not failed",
				zap.String(logging.FieldJobID, jobID), zap.Error(failErr))
		}
		return "", err
	}

	r.logger.Info("render accepted",
		zap.String(logging.FieldJobID, jobID),
		zap.String("job_name", p.Name),
		zap.String("output_path", outputPath),
		zap.Bool("hardware_accel", p.Settings.HardwareAccel))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer release()
		defer stop()
		defer r.registry.Deregister(jobID)
		r.execute(ctx, pc)
	}()
	return jobID, nil
}

// Cancel requests a cooperative abort of an active job.
func (r *Renderer) Cancel(jobID string) bool { return r.registry.Cancel(jobID) }

// Pause marks an active job paused.
func (r *Renderer) Pause(jobID string) bool { return r.registry.Pause(jobID) }

// Resume clears an active job's paused mark.
func (r *Renderer) Resume(jobID string) bool { return r.registry.Resume(jobID) }

// GetProgress projects an active job's progress. Absent once the job
// reaches a terminal status.
func (r *Renderer) GetProgress(jobID string) (tracker.Progress, bool) {
	return r.tracker.GetProgress(jobID)
}

// ListJobs projects every active job, oldest first.
func (r *Renderer) ListJobs() []tracker.Progress { return r.tracker.ListJobs() }

// Shutdown force-cancels every active job and waits for their goroutines
// to finish recording terminal states.
func (r *Renderer) Shutdown() {
	if ids := r.registry.Shutdown(); len(ids) > 0 {
		r.logger.Info("waiting for cancelled jobs", zap.Int("job_count", len(ids)))
	}
	r.wg.Wait()
}

// Wait blocks until every in-flight job goroutine returns.
func (r *Renderer) Wait() { r.wg.Wait() }

func (r *Renderer) execute(ctx context.Context, pc *pipeline.Context) {
	_, err := r.run(ctx, pc)
	if err == nil {
		r.complete(pc)
		return
	}
	if services.IsCancelled(err) {
		r.cancelled(pc)
		return
	}
	if pc.Project.Settings.HardwareAccel && services.IsGPURelated(err) {
		r.retrySoftware(ctx, pc, err)
		return
	}
	r.fail(pc, err.Error())
}

// retrySoftware re-runs the whole pipeline once with hardware
// acceleration disabled, under the same job id. A second failure reports
// both messages; there is never a second retry.
func (r *Renderer) retrySoftware(ctx context.Context, pc *pipeline.Context, hwErr error) {
	r.logger.Warn("hardware encode failed, retrying on software path",
		zap.String(logging.FieldJobID, pc.JobID),
		zap.String(logging.FieldErrorHint, "gpu"),
		zap.Error(hwErr))
	r.discardWorkspace(pc)

	retryProject := pc.Project.Clone()
	retryProject.DisableHardwareAccel()
	retryPC := pipeline.NewContext(pc.JobID, retryProject, pc.OutputPath)
	r.registry.Rebind(pc.JobID, retryPC)

	if _, err := r.run(ctx, retryPC); err != nil {
		if services.IsCancelled(err) {
			r.cancelled(retryPC)
			return
		}
		r.fail(retryPC, fmt.Sprintf("hardware encode failed: %s; software fallback failed: %s", hwErr, err))
		return
	}
	r.complete(retryPC)
}

func (r *Renderer) complete(pc *pipeline.Context) {
	if err := r.tracker.CompleteJob(pc.JobID); err != nil {
		r.logger.Warn("completion not recorded",
			zap.String(logging.FieldJobID, pc.JobID), zap.Error(err))
	}
}

func (r *Renderer) cancelled(pc *pipeline.Context) {
	r.discardWorkspace(pc)
	if err := r.tracker.CancelJob(pc.JobID); err != nil {
		r.logger.Warn("cancellation not recorded",
			zap.String(logging.FieldJobID, pc.JobID), zap.Error(err))
	}
}

func (r *Renderer) fail(pc *pipeline.Context, message string) {
	r.discardWorkspace(pc)
	if err := r.tracker.FailJob(pc.JobID, message); err != nil {
		r.logger.Warn("failure not recorded",
			zap.String(logging.FieldJobID, pc.JobID), zap.Error(err))
	}
}

// discardWorkspace drops a failed or cancelled run's temp directory.
// Successful runs clean up inside finalization instead.
func (r *Renderer) discardWorkspace(pc *pipeline.Context) {
	if r.cfg.Render.KeepWorkspaces {
		return
	}
	if err := pc.Cleanup(); err != nil {
		r.logger.Warn("workspace cleanup failed",
			zap.String(logging.FieldJobID, pc.JobID), zap.Error(err))
	}
}
