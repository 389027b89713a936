package pipeline

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Statistics records execution measurements for one run. Stages execute
// sequentially within a job, so no locking is needed.
type Statistics struct {
	StageStarts     map[string]time.Time
	FramesProcessed int64
	MemoryUsedBytes uint64
	ErrorCount      int
	WarningCount    int
}

func NewStatistics() *Statistics {
	return &Statistics{StageStarts: make(map[string]time.Time)}
}

// MarkStageStart records when a stage began. The first timestamp for a
// stage wins; re-entry on a retried run keeps the original start.
func (s *Statistics) MarkStageStart(stage string, at time.Time) {
	if _, seen := s.StageStarts[stage]; seen {
		return
	}
	s.StageStarts[stage] = at
}

// StageStart reports when a stage began.
func (s *Statistics) StageStart(stage string) (time.Time, bool) {
	at, ok := s.StageStarts[stage]
	return at, ok
}

// TotalDuration is the span from validation start to finalization start.
// Zero until both stages have begun.
func (s *Statistics) TotalDuration() time.Duration {
	started, ok := s.StageStarts[StageValidation]
	if !ok {
		return 0
	}
	finished, ok := s.StageStarts[StageFinalization]
	if !ok {
		return 0
	}
	return finished.Sub(started)
}

// AddFrames accumulates processed frame counts.
func (s *Statistics) AddFrames(n int64) {
	if n > 0 {
		s.FramesProcessed += n
	}
}

// RecordError increments the error counter.
func (s *Statistics) RecordError() {
	s.ErrorCount++
}

// RecordWarning increments the warning counter.
func (s *Statistics) RecordWarning() {
	s.WarningCount++
}

// SampleMemory records the process's current resident set size, keeping
// the high-water mark across samples.
func (s *Statistics) SampleMemory() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return s.MemoryUsedBytes, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return s.MemoryUsedBytes, err
	}
	if info.RSS > s.MemoryUsedBytes {
		s.MemoryUsedBytes = info.RSS
	}
	return s.MemoryUsedBytes, nil
}
