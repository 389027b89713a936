package history

import (
	"time"

	"splice/internal/tracker"
)

// Entry is one finished render. Frame counts and the output path are copied
// from the job's final progress snapshot before the tracker dropped it.
type Entry struct {
	ID             int64          `json:"id"`
	JobID          string         `json:"job_id"`
	JobName        string         `json:"job_name,omitempty"`
	OutputPath     string         `json:"output_path,omitempty"`
	Status         tracker.Status `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	TotalFrames    int64          `json:"total_frames"`
	RenderedFrames int64          `json:"rendered_frames"`
	Duration       time.Duration  `json:"duration"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// DatabaseHealth reports diagnostic information about the history database.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	TableExists      bool   `json:"table_exists"`
	TotalEntries     int64  `json:"total_entries"`
	IntegrityCheck   bool   `json:"integrity_check"`
	Error            string `json:"error,omitempty"`
}

// EntryFromEvent projects a terminal tracker event onto a history entry.
// Events that do not end a job produce nothing.
func EntryFromEvent(ev tracker.Event) (Entry, bool) {
	var status tracker.Status
	switch ev.Type {
	case tracker.EventJobCompleted:
		status = tracker.StatusCompleted
	case tracker.EventJobFailed:
		status = tracker.StatusFailed
	case tracker.EventJobCancelled:
		status = tracker.StatusCancelled
	default:
		return Entry{}, false
	}

	entry := Entry{
		JobID:        ev.JobID,
		Status:       status,
		OutputPath:   ev.OutputPath,
		ErrorMessage: ev.Error,
		Duration:     ev.Duration,
		FinishedAt:   ev.Timestamp,
	}
	if ev.Duration > 0 {
		entry.StartedAt = ev.Timestamp.Add(-ev.Duration)
	}
	if ev.Progress != nil {
		entry.JobName = ev.Progress.Name
		entry.TotalFrames = ev.Progress.TotalFrames
		entry.RenderedFrames = ev.Progress.CurrentFrame
		if entry.OutputPath == "" {
			entry.OutputPath = ev.Progress.OutputPath
		}
	}
	return entry, true
}
