package tracker

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle of a render job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends a job's lifecycle.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is one tracked render request. Current frame never exceeds total
// frames, and status only ever moves forward: queued jobs start
// processing, processing jobs end completed, failed, or cancelled.
// Mutation goes through the Tracker; one writer per id.
type Job struct {
	ID           string
	Name         string
	OutputPath   string
	Status       Status
	TotalFrames  int64
	CurrentFrame int64
	CurrentStage string
	Message      string
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// Progress is a read-only projection of a Job, recomputed on every read.
// Percent is 100 * current/total frames (0 when total is 0); Remaining
// extrapolates from elapsed time and is zero until progress is measurable.
type Progress struct {
	JobID        string        `json:"job_id"`
	Name         string        `json:"name,omitempty"`
	Status       Status        `json:"status"`
	Percent      float64       `json:"percent"`
	CurrentFrame int64         `json:"current_frame"`
	TotalFrames  int64         `json:"total_frames"`
	Stage        string        `json:"stage,omitempty"`
	StageLabel   string        `json:"stage_label,omitempty"`
	Message      string        `json:"message,omitempty"`
	OutputPath   string        `json:"output_path,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	Remaining    time.Duration `json:"remaining"`
}

// StageLabel renders a machine stage name for display.
func StageLabel(stage string) string {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return ""
	}
	return cases.Title(language.Und).String(stage)
}
