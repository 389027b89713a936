package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"splice/internal/artifactcache"
	"splice/internal/logging"
	"splice/internal/media/ffprobe"
	"splice/internal/services"
)

// probeSource is swapped in tests.
var probeSource = ffprobe.Inspect

// PreprocessingStage inspects every source and records intermediate-file
// placeholders for the later stages. Probe results land in the metadata
// cache region so repeated renders of the same sources skip the ffprobe
// round trip.
type PreprocessingStage struct {
	ffprobeBin string
	cache      *artifactcache.Cache
	logger     *zap.Logger
}

func NewPreprocessingStage(ffprobeBin string, cache *artifactcache.Cache, logger *zap.Logger) *PreprocessingStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PreprocessingStage{
		ffprobeBin: ffprobeBin,
		cache:      cache,
		logger:     logging.NewComponentLogger(logger, "preprocessing"),
	}
}

func (s *PreprocessingStage) Name() string { return StagePreprocessing }

func (s *PreprocessingStage) Process(ctx context.Context, pc *Context) error {
	for _, src := range pc.Project.Sources {
		result, err := s.probe(ctx, src.Path)
		if err != nil {
			return services.Wrap(services.ErrMediaFile, "preprocessing", "probe source",
				fmt.Sprintf("unreadable source: %s", src.Path), err)
		}

		if _, ok := result.VideoStream(); !ok {
			s.logger.Warn("source has no video stream",
				zap.String(logging.FieldJobID, pc.JobID),
				zap.String("source_id", src.ID),
				zap.String("source_file", src.Path))
			pc.Stats.RecordWarning()
		}

		pc.SetFile("source:"+src.ID, src.Path)
		pc.SetFile("intermediate:"+src.ID, filepath.Join(pc.WorkDir, "intermediate", src.ID+".mp4"))
		pc.SetScratch("duration:"+src.ID, result.DurationSeconds())

		s.logger.Debug("source inspected",
			zap.String(logging.FieldJobID, pc.JobID),
			zap.String("source_id", src.ID),
			zap.Float64("duration_seconds", result.DurationSeconds()),
			zap.Float64("frame_rate", result.FrameRate()))
	}

	if _, err := pc.Stats.SampleMemory(); err != nil {
		s.logger.Debug("memory sample unavailable", zap.Error(err))
	}
	return nil
}

func (s *PreprocessingStage) probe(ctx context.Context, path string) (ffprobe.Result, error) {
	key := artifactcache.MetadataKey(path)
	if s.cache != nil {
		if cached, ok := s.cache.Get(artifactcache.RegionMetadata, key); ok {
			if result, ok := cached.(ffprobe.Result); ok {
				return result, nil
			}
		}
	}
	result, err := probeSource(ctx, s.ffprobeBin, path)
	if err != nil {
		return ffprobe.Result{}, err
	}
	if s.cache != nil {
		s.cache.Store(artifactcache.RegionMetadata, key, result, metadataSize(result))
	}
	return result, nil
}

// metadataSize is a rough in-memory estimate for cache accounting.
func metadataSize(result ffprobe.Result) int64 {
	return int64(512 + 256*len(result.Streams))
}

func (s *PreprocessingStage) EstimatedDuration(pc *Context) time.Duration {
	if pc == nil || pc.Project == nil {
		return time.Second
	}
	return time.Duration(len(pc.Project.Sources)) * time.Second
}

func (s *PreprocessingStage) CanSkip(pc *Context) bool { return false }
