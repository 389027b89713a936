package ipc

import (
	"encoding/json"

	"splice/internal/artifactcache"
	"splice/internal/history"
	"splice/internal/tracker"
)

// StatusRequest asks the daemon for its runtime status.
type StatusRequest struct{}

// DependencyStatus describes the availability of one external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StatusResponse reports daemon runtime status.
type StatusResponse struct {
	Running       bool                   `json:"running"`
	PID           int                    `json:"pid"`
	ActiveJobs    int                    `json:"active_jobs"`
	MaxActiveJobs int                    `json:"max_active_jobs"`
	Cache         artifactcache.Stats    `json:"cache"`
	History       map[tracker.Status]int `json:"history"`
	Dependencies  []DependencyStatus     `json:"dependencies"`
	DatabasePath  string                 `json:"database_path"`
	SocketPath    string                 `json:"socket_path"`
	LockFilePath  string                 `json:"lock_file_path"`
	LogFilePath   string                 `json:"log_file_path"`
}

// RenderRequest submits a project document for rendering.
type RenderRequest struct {
	ProjectJSON json.RawMessage `json:"project"`
	OutputPath  string          `json:"output_path"`
}

// RenderResponse returns the identifier of the accepted render job.
type RenderResponse struct {
	JobID string `json:"job_id"`
}

// JobsRequest asks for progress of all live render jobs.
type JobsRequest struct{}

// JobsResponse lists live render jobs, oldest first.
type JobsResponse struct {
	Jobs []tracker.Progress `json:"jobs"`
}

// ProgressRequest asks for the progress of one render job.
type ProgressRequest struct {
	JobID string `json:"job_id"`
}

// ProgressResponse reports progress for a single job when it exists.
type ProgressResponse struct {
	Found    bool              `json:"found"`
	Progress *tracker.Progress `json:"progress,omitempty"`
}

// CancelRequest asks the daemon to cancel a render job.
type CancelRequest struct {
	JobID string `json:"job_id"`
}

// CancelResponse reports whether the cancel request was delivered.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// PauseRequest asks the daemon to pause a render job.
type PauseRequest struct {
	JobID string `json:"job_id"`
}

// PauseResponse reports whether the pause request was delivered.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// ResumeRequest asks the daemon to resume a paused render job.
type ResumeRequest struct {
	JobID string `json:"job_id"`
}

// ResumeResponse reports whether the resume request was delivered.
type ResumeResponse struct {
	Resumed bool `json:"resumed"`
}

// EventsRequest fetches lifecycle events after a cursor. When Wait is
// set the daemon blocks up to WaitMillis for new events to arrive.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Wait       bool   `json:"wait"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns lifecycle events and the next cursor.
type EventsResponse struct {
	Events []tracker.Event `json:"events"`
	Next   uint64          `json:"next"`
}

// CacheStatsRequest asks for artifact cache statistics.
type CacheStatsRequest struct{}

// CacheStatsResponse reports per-region statistics and memory usage.
type CacheStatsResponse struct {
	Stats artifactcache.Stats `json:"stats"`
	Usage artifactcache.Usage `json:"usage"`
}

// CacheSweepRequest asks the daemon to evict expired cache entries.
type CacheSweepRequest struct{}

// CacheSweepResponse reports how many entries the sweep removed.
type CacheSweepResponse struct {
	Removed int `json:"removed"`
}

// CacheClearRequest clears one cache region, or all regions when
// Region is empty.
type CacheClearRequest struct {
	Region string `json:"region,omitempty"`
}

// CacheClearResponse reports how many entries were cleared.
type CacheClearResponse struct {
	Removed int `json:"removed"`
}

// CacheSetLimitsRequest replaces the per-region entry limits.
type CacheSetLimitsRequest struct {
	Preview  int `json:"preview"`
	Metadata int `json:"metadata"`
	Render   int `json:"render"`
}

// CacheSetLimitsResponse returns statistics after the limits applied.
type CacheSetLimitsResponse struct {
	Stats artifactcache.Stats `json:"stats"`
}

// HistoryRequest asks for finished render jobs, newest first.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists finished render jobs.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// HistoryShowRequest asks for the history entry of one job.
type HistoryShowRequest struct {
	JobID string `json:"job_id"`
}

// HistoryShowResponse reports a single history entry when it exists.
type HistoryShowResponse struct {
	Found bool           `json:"found"`
	Entry *history.Entry `json:"entry,omitempty"`
}

// HistoryClearRequest deletes all recorded history entries.
type HistoryClearRequest struct{}

// HistoryClearResponse reports how many entries were deleted.
type HistoryClearResponse struct {
	Removed int64 `json:"removed"`
}

// DatabaseHealthRequest asks for a health report of the history store.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports history database health.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	TableExists      bool   `json:"table_exists"`
	TotalEntries     int64  `json:"total_entries"`
	IntegrityCheck   bool   `json:"integrity_check"`
	Error            string `json:"error,omitempty"`
}

// LogsRequest reads daemon log lines. A negative Offset selects the last
// Limit lines; otherwise reading resumes at Offset. When Follow is set the
// daemon polls up to WaitMillis for new lines before answering.
type LogsRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogsResponse returns log lines and the offset to resume from.
type LogsResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest asks the daemon to send a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the outcome of the test notification.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse confirms the shutdown request was accepted.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
