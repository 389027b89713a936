package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"splice/internal/config"
	"splice/internal/logging"
	"splice/internal/services"
)

// ValidationStage checks the project snapshot before any work happens:
// schema consistency, source file existence, and a writable workspace.
type ValidationStage struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewValidationStage(cfg *config.Config, logger *zap.Logger) *ValidationStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ValidationStage{cfg: cfg, logger: logging.NewComponentLogger(logger, "validation")}
}

func (s *ValidationStage) Name() string { return StageValidation }

func (s *ValidationStage) Process(ctx context.Context, pc *Context) error {
	if pc.Project == nil {
		return services.Wrap(services.ErrValidation, "validation", "project", "no project snapshot", nil)
	}
	if err := pc.Project.Validate(); err != nil {
		return err
	}
	if pc.OutputPath == "" {
		return services.Wrap(services.ErrValidation, "validation", "output", "output path is empty", nil)
	}

	// A source that validated against the schema can still be gone from
	// disk; that is a media failure, not a schema one.
	for _, src := range pc.Project.Sources {
		info, err := os.Stat(src.Path)
		if err != nil {
			return services.Wrap(services.ErrMediaFile, "validation", "check source",
				fmt.Sprintf("source file missing: %s", src.Path), err)
		}
		if info.IsDir() {
			return services.Wrap(services.ErrMediaFile, "validation", "check source",
				fmt.Sprintf("source is a directory: %s", src.Path), nil)
		}
	}

	if err := pc.CreateWorkDir(s.cfg.Paths.WorkDir); err != nil {
		return err
	}
	s.logger.Debug("project validated",
		zap.String(logging.FieldJobID, pc.JobID),
		zap.Int("sources", len(pc.Project.Sources)),
		zap.Int("tracks", len(pc.Project.Tracks)),
		zap.String("work_dir", pc.WorkDir))
	return nil
}

func (s *ValidationStage) EstimatedDuration(pc *Context) time.Duration {
	return 500 * time.Millisecond
}

func (s *ValidationStage) CanSkip(pc *Context) bool { return false }
