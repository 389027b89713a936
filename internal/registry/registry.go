// Package registry bounds concurrent renders and maps job ids to their
// cancellation and pause controls. Slots are claimed before a job is
// created anywhere else, so a rejected render leaves no trace behind.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"splice/internal/logging"
	"splice/internal/pipeline"
	"splice/internal/services"
)

type slot struct {
	pc     *pipeline.Context
	stop   context.CancelFunc
	paused bool
}

// Registry is safe for concurrent use. Reads (counts, pause state) take
// the read side of the lock; admissions and control operations take the
// write side.
type Registry struct {
	mu     sync.RWMutex
	logger *zap.Logger
	limit  int
	active int
	jobs   map[string]*slot
}

func New(limit int, logger *zap.Logger) *Registry {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		logger: logging.NewComponentLogger(logger, "registry"),
		limit:  limit,
		jobs:   make(map[string]*slot),
	}
}

// Acquire claims a concurrency slot ahead of job creation. The returned
// release function gives the slot back and is safe to call once the
// render finishes, on any path.
func (r *Registry) Acquire() (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active >= r.limit {
		return nil, services.Wrap(services.ErrTooManyJobs, "registry", "admit",
			fmt.Sprintf("%d of %d slots in use", r.active, r.limit), nil)
	}
	r.active++

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			r.active--
			r.mu.Unlock()
		})
	}
	return release, nil
}

// Register associates a running job with its pipeline context and stop
// function so cancel/pause/resume can reach it.
func (r *Registry) Register(jobID string, pc *pipeline.Context, stop context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jobID]; exists {
		return services.Wrap(services.ErrValidation, "registry", "register",
			fmt.Sprintf("job %s already registered", jobID), nil)
	}
	r.jobs[jobID] = &slot{pc: pc, stop: stop}
	r.logger.Debug("job registered",
		zap.String(logging.FieldJobID, jobID),
		zap.Int("active_jobs", r.active))
	return nil
}

// Rebind points an existing entry at a fresh pipeline context. The
// renderer uses this when a job restarts on the software path under the
// same id; a cancellation requested meanwhile carries over.
func (r *Registry) Rebind(jobID string, pc *pipeline.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	if entry.pc != nil && entry.pc.Cancelled() {
		pc.Cancel()
	}
	entry.pc = pc
	return true
}

// Deregister forgets a job. Idempotent; the concurrency slot is returned
// separately through the Acquire release function.
func (r *Registry) Deregister(jobID string) {
	r.mu.Lock()
	delete(r.jobs, jobID)
	r.mu.Unlock()
}

// Cancel requests a cooperative abort. The in-flight stage finishes
// first. Unknown ids report false rather than an error.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	entry.pc.Cancel()
	r.logger.Info("cancellation requested", zap.String(logging.FieldJobID, jobID))
	return true
}

// Pause marks a job paused. Acknowledged at this layer; stages decide
// whether to honor it.
func (r *Registry) Pause(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	entry.paused = true
	r.logger.Info("pause requested", zap.String(logging.FieldJobID, jobID))
	return true
}

// Resume clears a job's paused mark.
func (r *Registry) Resume(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	entry.paused = false
	r.logger.Info("resume requested", zap.String(logging.FieldJobID, jobID))
	return true
}

// Paused reports whether a pause has been requested for the job.
func (r *Registry) Paused(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[jobID]
	return ok && entry.paused
}

// ActiveCount reports claimed slots, including admissions still starting.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Limit reports the configured concurrency bound.
func (r *Registry) Limit() int {
	return r.limit
}

// ActiveIDs lists registered job ids in stable order.
func (r *Registry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown force-cancels every registered job: cooperative flags are set
// and each job's context is stopped so in-flight encoder processes die.
// Returns the ids that were cancelled.
func (r *Registry) Shutdown() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.jobs))
	for id, entry := range r.jobs {
		entry.pc.Cancel()
		if entry.stop != nil {
			entry.stop()
		}
		ids = append(ids, id)
	}
	r.jobs = make(map[string]*slot)
	sort.Strings(ids)

	if len(ids) > 0 {
		r.logger.Info("shutdown cancelled active jobs", zap.Int("job_count", len(ids)))
	}
	return ids
}
