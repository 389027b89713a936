package pipeline

import (
	"os"
	"strings"
	"sync/atomic"

	"splice/internal/project"
	"splice/internal/services"
	"splice/internal/textutil"
)

// CompositionResult is the merged-timeline output the composition stage
// hands to encoding.
type CompositionResult struct {
	FilterGraph string
}

// Context carries one render job's state through the stages. It is owned
// by exactly one job and mutated sequentially by its stages; only the
// cancellation flag may be touched from outside the running job.
type Context struct {
	JobID      string
	Project    *project.Project
	OutputPath string
	WorkDir    string

	// Composition is written by the composition stage and read by
	// encoding. A pre-populated value lets composition skip on resume.
	Composition *CompositionResult

	Stats *Statistics

	files     map[string]string
	scratch   map[string]any
	cancelled atomic.Bool
}

// NewContext snapshots the project for one run. The caller's project is
// cloned so later edits in the host application never leak into an
// in-flight render.
func NewContext(jobID string, p *project.Project, outputPath string) *Context {
	return &Context{
		JobID:      jobID,
		Project:    p.Clone(),
		OutputPath: strings.TrimSpace(outputPath),
		Stats:      NewStatistics(),
		files:      make(map[string]string),
		scratch:    make(map[string]any),
	}
}

// CreateWorkDir makes the job's private temp directory under base. The
// directory name carries the project token and job id so kept workspaces
// can be matched to their render by eye.
func (c *Context) CreateWorkDir(base string) error {
	if c.WorkDir != "" {
		return nil
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return services.Wrap(services.ErrIO, "pipeline", "create work dir", base, err)
	}
	prefix := "render-" + textutil.SanitizeToken(c.Project.Name) + "-" + c.JobID + "-"
	dir, err := os.MkdirTemp(base, prefix)
	if err != nil {
		return services.Wrap(services.ErrIO, "pipeline", "create work dir", base, err)
	}
	c.WorkDir = dir
	return nil
}

// Cleanup removes the job's temp directory. Safe to call more than once.
func (c *Context) Cleanup() error {
	if c.WorkDir == "" {
		return nil
	}
	if err := os.RemoveAll(c.WorkDir); err != nil {
		return services.Wrap(services.ErrIO, "pipeline", "remove work dir", c.WorkDir, err)
	}
	c.WorkDir = ""
	return nil
}

// SetFile records a named intermediate file path.
func (c *Context) SetFile(name, path string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.files[name] = path
}

// File looks up a named intermediate file path.
func (c *Context) File(name string) (string, bool) {
	path, ok := c.files[name]
	return path, ok
}

// Files returns a copy of the intermediate file table.
func (c *Context) Files() map[string]string {
	out := make(map[string]string, len(c.files))
	for name, path := range c.files {
		out[name] = path
	}
	return out
}

// SetScratch stores a stage-private note. Cross-stage data belongs in
// typed fields, not here.
func (c *Context) SetScratch(key string, value any) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	c.scratch[key] = value
}

// Scratch reads a stage-private note.
func (c *Context) Scratch(key string) (any, bool) {
	value, ok := c.scratch[key]
	return value, ok
}

// Cancel requests a cooperative abort. The in-flight stage finishes; the
// runner aborts at the next stage boundary.
func (c *Context) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled reports whether an abort has been requested.
func (c *Context) Cancelled() bool {
	return c.cancelled.Load()
}
