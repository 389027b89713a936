package tracker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"splice/internal/logging"
	"splice/internal/services"
)

// Tracker keeps every in-flight render job and publishes lifecycle events.
type Tracker struct {
	mu     sync.RWMutex
	logger *zap.Logger
	jobs   map[string]*Job
	events *hub

	// now is replaced in tests to pin elapsed-time math.
	now func() time.Time
}

// New builds an empty tracker.
func New(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		logger: logging.NewComponentLogger(logger, "tracker"),
		jobs:   make(map[string]*Job),
		events: newHub(),
		now:    time.Now,
	}
}

// Events returns the stream the daemon consumes. One logical consumer;
// delivery preserves per-job publish order.
func (t *Tracker) Events() <-chan Event {
	return t.events.out
}

// Close stops event intake and, once buffered events drain, closes the
// stream. Jobs still registered are left untouched; cancel them first.
func (t *Tracker) Close() {
	t.events.close()
}

// CreateJob registers a new processing job and emits JobStarted.
func (t *Tracker) CreateJob(name, outputPath string, totalFrames int64) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "tracker", "create job", "job name is empty", nil)
	}
	if totalFrames < 0 {
		totalFrames = 0
	}

	id := uuid.NewString()
	now := t.now()
	job := &Job{
		ID:          id,
		Name:        name,
		OutputPath:  strings.TrimSpace(outputPath),
		Status:      StatusProcessing,
		TotalFrames: totalFrames,
		CreatedAt:   now,
		StartedAt:   now,
	}

	t.mu.Lock()
	t.jobs[id] = job
	progress := t.projectionLocked(job)
	t.events.publish(Event{Type: EventJobStarted, JobID: id, Timestamp: now.UTC(), Progress: &progress})
	t.mu.Unlock()

	t.logger.Info("render job started",
		zap.String(logging.FieldJobID, id),
		zap.String("job_name", name),
		zap.Int64("total_frames", totalFrames),
		zap.String(logging.FieldEventType, "job_started"))
	return id, nil
}

// UpdateProgress records a frame advance for a processing job and emits
// ProgressChanged. The frame count is clamped to [0, total frames]; an
// empty stage keeps the job's current stage.
func (t *Tracker) UpdateProgress(jobID string, currentFrame int64, stage, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return unknownJob("update progress", jobID)
	}
	if job.Status != StatusProcessing {
		return services.Wrap(services.ErrValidation, "tracker", "update progress",
			fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}

	if currentFrame < 0 {
		currentFrame = 0
	}
	if currentFrame > job.TotalFrames {
		currentFrame = job.TotalFrames
	}
	job.CurrentFrame = currentFrame
	if s := strings.TrimSpace(stage); s != "" {
		job.CurrentStage = s
	}
	job.Message = strings.TrimSpace(message)

	progress := t.projectionLocked(job)
	t.events.publish(Event{
		Type:      EventProgressChanged,
		JobID:     jobID,
		Timestamp: t.now().UTC(),
		Progress:  &progress,
	})
	return nil
}

// CompleteJob marks a job finished, removes it, and emits JobCompleted
// carrying the output path and total duration.
func (t *Tracker) CompleteJob(jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return unknownJob("complete job", jobID)
	}

	now := t.now()
	job.Status = StatusCompleted
	job.CurrentFrame = job.TotalFrames
	completed := now
	job.CompletedAt = &completed
	progress := t.projectionLocked(job)
	delete(t.jobs, jobID)

	t.events.publish(Event{
		Type:       EventJobCompleted,
		JobID:      jobID,
		Timestamp:  now.UTC(),
		Progress:   &progress,
		OutputPath: job.OutputPath,
		Duration:   now.Sub(job.StartedAt),
	})
	t.logger.Info("render job completed",
		zap.String(logging.FieldJobID, jobID),
		zap.String("output_path", job.OutputPath),
		zap.Duration("duration", now.Sub(job.StartedAt)),
		zap.String(logging.FieldEventType, "job_completed"))
	return nil
}

// FailJob marks a job failed, removes it, and emits JobFailed carrying the
// failure message verbatim.
func (t *Tracker) FailJob(jobID, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return unknownJob("fail job", jobID)
	}

	now := t.now()
	job.Status = StatusFailed
	job.ErrorMessage = strings.TrimSpace(message)
	completed := now
	job.CompletedAt = &completed
	progress := t.projectionLocked(job)
	delete(t.jobs, jobID)

	t.events.publish(Event{
		Type:      EventJobFailed,
		JobID:     jobID,
		Timestamp: now.UTC(),
		Progress:  &progress,
		Error:     job.ErrorMessage,
		Duration:  now.Sub(job.StartedAt),
	})
	t.logger.Warn("render job failed",
		zap.String(logging.FieldJobID, jobID),
		zap.String("error", job.ErrorMessage),
		zap.Duration("duration", now.Sub(job.StartedAt)),
		zap.String(logging.FieldEventType, "job_failed"))
	return nil
}

// CancelJob marks a job cancelled, removes it, and emits JobCancelled.
// Cancellation is an outcome, not an error.
func (t *Tracker) CancelJob(jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return unknownJob("cancel job", jobID)
	}

	now := t.now()
	job.Status = StatusCancelled
	completed := now
	job.CompletedAt = &completed
	progress := t.projectionLocked(job)
	delete(t.jobs, jobID)

	t.events.publish(Event{
		Type:      EventJobCancelled,
		JobID:     jobID,
		Timestamp: now.UTC(),
		Progress:  &progress,
		Duration:  now.Sub(job.StartedAt),
	})
	t.logger.Info("render job cancelled",
		zap.String(logging.FieldJobID, jobID),
		zap.String(logging.FieldEventType, "job_cancelled"))
	return nil
}

// GetProgress projects a job's current progress. The second return is
// false once the job has reached a terminal status and left the registry.
func (t *Tracker) GetProgress(jobID string) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return Progress{}, false
	}
	return t.projectionLocked(job), true
}

// ListJobs projects every active job, oldest first.
func (t *Tracker) ListJobs() []Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	jobs := make([]*Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	out := make([]Progress, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, t.projectionLocked(job))
	}
	return out
}

// ActiveCount reports how many jobs are currently registered.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

func (t *Tracker) projectionLocked(job *Job) Progress {
	now := t.now()
	elapsed := now.Sub(job.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	var percent float64
	if job.TotalFrames > 0 {
		percent = 100 * float64(job.CurrentFrame) / float64(job.TotalFrames)
	}
	var remaining time.Duration
	if percent > 0 && percent < 100 {
		remaining = time.Duration(float64(elapsed)*(100/percent)) - elapsed
	}

	return Progress{
		JobID:        job.ID,
		Name:         job.Name,
		Status:       job.Status,
		Percent:      percent,
		CurrentFrame: job.CurrentFrame,
		TotalFrames:  job.TotalFrames,
		Stage:        job.CurrentStage,
		StageLabel:   StageLabel(job.CurrentStage),
		Message:      job.Message,
		OutputPath:   job.OutputPath,
		Elapsed:      elapsed,
		Remaining:    remaining,
	}
}

func unknownJob(operation, jobID string) error {
	return services.Wrap(services.ErrNotFound, "tracker", operation,
		fmt.Sprintf("unknown job %s", jobID), nil)
}
