package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"splice/internal/logging"
	"splice/internal/services/ffmpeg"
)

// CompositionStage merges every track into one filter graph by delegating
// to the command builder. The result lands in the Context's typed slot;
// when a prior run already left one there, the stage skips instead of
// recomposing.
type CompositionStage struct {
	builder ffmpeg.Builder
	logger  *zap.Logger
}

func NewCompositionStage(builder ffmpeg.Builder, logger *zap.Logger) *CompositionStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CompositionStage{builder: builder, logger: logging.NewComponentLogger(logger, "composition")}
}

func (s *CompositionStage) Name() string { return StageComposition }

func (s *CompositionStage) Process(ctx context.Context, pc *Context) error {
	graph, err := s.builder.TimelineGraph(pc.Project)
	if err != nil {
		return err
	}
	pc.Composition = &CompositionResult{FilterGraph: graph}

	s.logger.Debug("timeline composed",
		zap.String(logging.FieldJobID, pc.JobID),
		zap.Int("graph_length", len(graph)),
		zap.Int("transitions", len(pc.Project.Transitions)))
	return nil
}

func (s *CompositionStage) EstimatedDuration(pc *Context) time.Duration {
	return time.Second
}

// CanSkip is satisfied by a composition result already in the Context.
func (s *CompositionStage) CanSkip(pc *Context) bool {
	return pc.Composition != nil && pc.Composition.FilterGraph != ""
}
