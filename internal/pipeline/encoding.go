package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"splice/internal/logging"
	"splice/internal/services"
	"splice/internal/services/ffmpeg"
	"splice/internal/tracker"
)

// EncodingStage drives the external encoder over the composed filter
// graph, streaming frame-level progress into the tracker. It writes to an
// intermediate file in the workspace; finalization moves it to its real
// destination.
type EncodingStage struct {
	builder ffmpeg.Builder
	runner  Runner
	tracker *tracker.Tracker
	logger  *zap.Logger
}

func NewEncodingStage(builder ffmpeg.Builder, runner Runner, tr *tracker.Tracker, logger *zap.Logger) *EncodingStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EncodingStage{
		builder: builder,
		runner:  runner,
		tracker: tr,
		logger:  logging.NewComponentLogger(logger, "encoding"),
	}
}

func (s *EncodingStage) Name() string { return StageEncoding }

func (s *EncodingStage) Process(ctx context.Context, pc *Context) error {
	if pc.Composition == nil || pc.Composition.FilterGraph == "" {
		return services.Wrap(services.ErrValidation, "encoding", "composition result",
			"no composition result in context", nil)
	}

	encodedPath := filepath.Join(pc.WorkDir, "encoded"+outputExt(pc.OutputPath))
	args, err := s.builder.EncodeArgs(pc.Project, pc.Composition.FilterGraph, encodedPath)
	if err != nil {
		return err
	}
	pc.SetFile("encoded", encodedPath)

	s.logger.Info("encode started",
		zap.String(logging.FieldJobID, pc.JobID),
		zap.String("output", encodedPath),
		zap.Bool("hardware_accel", pc.Project.Settings.HardwareAccel))

	var lastFrame int64
	err = s.runner.Run(ctx, args, func(p ffmpeg.Progress) {
		if p.Frame <= 0 {
			return
		}
		lastFrame = p.Frame
		message := fmt.Sprintf("%.1f fps, %.2fx realtime", p.FPS, p.Speed)
		if s.tracker != nil {
			if err := s.tracker.UpdateProgress(pc.JobID, p.Frame, StageEncoding, message); err != nil {
				s.logger.Debug("progress update dropped", zap.Error(err))
			}
		}
	})
	pc.Stats.AddFrames(lastFrame)
	if _, memErr := pc.Stats.SampleMemory(); memErr != nil {
		s.logger.Debug("memory sample unavailable", zap.Error(memErr))
	}
	if err != nil {
		return err
	}

	s.logger.Info("encode finished",
		zap.String(logging.FieldJobID, pc.JobID),
		zap.Int64("frames", lastFrame))
	return nil
}

func outputExt(outputPath string) string {
	if ext := filepath.Ext(outputPath); ext != "" {
		return ext
	}
	return ".mp4"
}

func (s *EncodingStage) EstimatedDuration(pc *Context) time.Duration {
	if pc == nil || pc.Project == nil || pc.Project.Settings.Duration <= 0 {
		return time.Minute
	}
	// Assume roughly realtime encode speed.
	return time.Duration(pc.Project.Settings.Duration * float64(time.Second))
}

func (s *EncodingStage) CanSkip(pc *Context) bool { return false }
