package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"splice/internal/artifactcache"
	"splice/internal/config"
	"splice/internal/deps"
	"splice/internal/eventstream"
	"splice/internal/history"
	"splice/internal/notifications"
	"splice/internal/preflight"
	"splice/internal/project"
	"splice/internal/registry"
	"splice/internal/renderer"
	"splice/internal/tracker"
)

// eventBufferSize bounds the replayable event window IPC clients poll.
const eventBufferSize = 512

// Daemon coordinates the render services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *zap.Logger
	tracker  *tracker.Tracker
	registry *registry.Registry
	renderer *renderer.Renderer
	cache    *artifactcache.Cache
	history  *history.Store
	events   *eventstream.Hub
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	pumpDone chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	ActiveJobs    int
	MaxActiveJobs int
	Cache         artifactcache.Stats
	History       map[tracker.Status]int
	Dependencies  []deps.Status
	DatabasePath  string
	SocketPath    string
	LockFilePath  string
	LogFilePath   string
}

// New constructs a daemon with initialized subsystems.
func New(cfg *config.Config, logger *zap.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	hist, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	tr := tracker.New(logger)
	reg := registry.New(cfg.Render.MaxActiveJobs, logger)
	cache := artifactcache.New(cfg, logger)
	rend := renderer.New(cfg, tr, reg, cache, logger)

	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		tracker:  tr,
		registry: reg,
		renderer: rend,
		cache:    cache,
		history:  hist,
		events:   eventstream.NewHub(eventBufferSize),
		notifier: notifications.NewService(cfg),
		logPath:  cfg.LogFilePath(),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		shutdown: make(chan struct{}),
	}, nil
}

// Start acquires the single-instance lock, pins the renderer's base context,
// and launches the event pump. Preflight failures are logged as warnings
// rather than blocking startup.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another splice daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.renderer.Start(d.ctx)

	d.pumpDone = make(chan struct{})
	go d.pumpEvents()

	for _, result := range preflight.RunAll(d.ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			zap.String("check", result.Name),
			zap.String("detail", result.Detail))
	}

	d.running.Store(true)
	d.logger.Info("splice daemon started",
		zap.String("lock", d.lockPath),
		zap.Int("max_active_jobs", d.registry.Limit()))
	return nil
}

// Stop force-cancels active jobs, drains the event pump, and releases the
// daemon lock. Stop is terminal: the tracker's event stream closes and the
// daemon cannot be restarted within the same process.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.renderer.Shutdown()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.tracker.Close()
	if d.pumpDone != nil {
		<-d.pumpDone
		d.pumpDone = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", zap.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("splice daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// RequestShutdown asks the hosting process to exit. The IPC shutdown
// operation uses this so a remote client can stop the daemon cleanly.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)
	})
}

// ShutdownRequested is closed once a shutdown has been requested.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// SubmitRender decodes a project snapshot and submits it for rendering.
// Admission control and validation happen inside the renderer.
func (d *Daemon) SubmitRender(projectJSON []byte, outputPath string) (string, error) {
	if d.renderer == nil {
		return "", errors.New("renderer unavailable")
	}
	p, err := project.Parse(projectJSON)
	if err != nil {
		return "", err
	}
	return d.renderer.CreateRender(p, outputPath)
}

// Cancel requests a cooperative abort of an active job.
func (d *Daemon) Cancel(jobID string) bool { return d.renderer.Cancel(jobID) }

// Pause marks an active job paused.
func (d *Daemon) Pause(jobID string) bool { return d.renderer.Pause(jobID) }

// Resume clears an active job's paused mark.
func (d *Daemon) Resume(jobID string) bool { return d.renderer.Resume(jobID) }

// Progress projects an active job's progress.
func (d *Daemon) Progress(jobID string) (tracker.Progress, bool) {
	return d.renderer.GetProgress(jobID)
}

// Jobs projects every active job, oldest first.
func (d *Daemon) Jobs() []tracker.Progress { return d.renderer.ListJobs() }

// Events fetches buffered events after the given cursor. With wait set the
// call blocks until new events arrive or the context ends.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]tracker.Event, uint64, error) {
	return d.events.Fetch(ctx, since, limit, wait)
}

// CacheStats reports per-region artifact cache statistics.
func (d *Daemon) CacheStats() artifactcache.Stats { return d.cache.Stats() }

// CacheUsage reports aggregate artifact cache memory usage.
func (d *Daemon) CacheUsage() artifactcache.Usage { return d.cache.MemoryUsage() }

// CacheSweep drops expired entries from every cache region and reports how
// many were removed.
func (d *Daemon) CacheSweep() int { return d.cache.SweepExpired() }

// CacheClear empties one cache region, or every region when the name is
// blank, and reports how many entries were removed.
func (d *Daemon) CacheClear(regionName string) (int, error) {
	if strings.TrimSpace(regionName) == "" {
		return d.cache.ClearAll(), nil
	}
	region, ok := artifactcache.ParseRegion(regionName)
	if !ok {
		return 0, fmt.Errorf("unknown cache region %q", regionName)
	}
	return d.cache.Clear(region), nil
}

// CacheSetLimits applies new per-region entry caps, evicting as needed.
func (d *Daemon) CacheSetLimits(preview, metadata, render int) {
	d.cache.SetLimits(preview, metadata, render)
}

// History lists finished renders, newest first. A non-positive limit returns
// every retained entry.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.List(ctx, limit)
}

// HistoryEntry returns the newest history entry for a job id, or nil when
// the job never reached a terminal state.
func (d *Daemon) HistoryEntry(ctx context.Context, jobID string) (*history.Entry, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.GetByJobID(ctx, jobID)
}

// HistoryClear removes all history entries.
func (d *Daemon) HistoryClear(ctx context.Context) (int64, error) {
	if d.history == nil {
		return 0, errors.New("history store unavailable")
	}
	return d.history.Clear(ctx)
}

// DatabaseHealth returns detailed history database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (history.DatabaseHealth, error) {
	if d.history == nil {
		return history.DatabaseHealth{}, errors.New("history store unavailable")
	}
	return d.history.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		ActiveJobs:    d.registry.ActiveCount(),
		MaxActiveJobs: d.registry.Limit(),
		Cache:         d.cache.Stats(),
		Dependencies:  preflight.CheckSystemDeps(ctx, d.cfg),
		DatabasePath:  d.cfg.DatabasePath(),
		SocketPath:    d.cfg.SocketPath(),
		LockFilePath:  d.lockPath,
		LogFilePath:   d.logPath,
	}
	if d.history != nil {
		if stats, err := d.history.Stats(ctx); err == nil {
			st.History = stats
		}
	}
	return st
}
