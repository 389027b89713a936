package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"splice/internal/artifactcache"
	"splice/internal/fileutil"
	"splice/internal/logging"
	"splice/internal/services"
)

// RenderArtifact describes one finished render, kept in the cache's
// render region so recent outputs can be surfaced without touching disk.
type RenderArtifact struct {
	JobID       string        `json:"job_id"`
	OutputPath  string        `json:"output_path"`
	SizeBytes   int64         `json:"size_bytes"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// FinalizationStage moves the encoded intermediate to its destination,
// verifies it arrived intact, records the artifact, and removes the
// workspace. A missing output is fatal; nothing can repair it here.
type FinalizationStage struct {
	keepWorkspace bool
	cache         *artifactcache.Cache
	logger        *zap.Logger
}

func NewFinalizationStage(keepWorkspace bool, cache *artifactcache.Cache, logger *zap.Logger) *FinalizationStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FinalizationStage{
		keepWorkspace: keepWorkspace,
		cache:         cache,
		logger:        logging.NewComponentLogger(logger, "finalization"),
	}
}

func (s *FinalizationStage) Name() string { return StageFinalization }

func (s *FinalizationStage) Process(ctx context.Context, pc *Context) error {
	encodedPath, ok := pc.File("encoded")
	if !ok {
		return services.Wrap(services.ErrIO, "finalization", "locate output",
			"no encoded file recorded in context", nil)
	}
	if _, err := os.Stat(encodedPath); err != nil {
		return services.Wrap(services.ErrIO, "finalization", "locate output",
			fmt.Sprintf("encoded file missing: %s", encodedPath), err)
	}

	if err := fileutil.MoveFile(encodedPath, pc.OutputPath); err != nil {
		return services.Wrap(services.ErrIO, "finalization", "move output", pc.OutputPath, err)
	}

	info, err := os.Stat(pc.OutputPath)
	if err != nil {
		return services.Wrap(services.ErrIO, "finalization", "verify output", pc.OutputPath, err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrIO, "finalization", "verify output",
			fmt.Sprintf("output file is empty: %s", pc.OutputPath), nil)
	}

	if s.cache != nil {
		artifact := RenderArtifact{
			JobID:       pc.JobID,
			OutputPath:  pc.OutputPath,
			SizeBytes:   info.Size(),
			Duration:    pc.Stats.TotalDuration(),
			CompletedAt: time.Now().UTC(),
		}
		s.cache.Store(artifactcache.RegionRender, pc.JobID, artifact, int64(256+len(pc.OutputPath)))
	}

	if s.keepWorkspace {
		s.logger.Debug("keeping workspace for inspection",
			zap.String(logging.FieldJobID, pc.JobID),
			zap.String("work_dir", pc.WorkDir))
	} else if err := pc.Cleanup(); err != nil {
		// The render itself succeeded; a leftover workspace is an
		// operator chore, not a job failure.
		s.logger.Warn("workspace cleanup failed",
			zap.String(logging.FieldJobID, pc.JobID),
			zap.Error(err))
	}

	s.logger.Info("render finalized",
		zap.String(logging.FieldJobID, pc.JobID),
		zap.String("output_path", pc.OutputPath),
		zap.Int64("size_bytes", info.Size()))
	return nil
}

func (s *FinalizationStage) EstimatedDuration(pc *Context) time.Duration {
	return time.Second
}

func (s *FinalizationStage) CanSkip(pc *Context) bool { return false }
