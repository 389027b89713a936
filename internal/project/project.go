// Package project defines the declarative project description the renderer
// consumes. The host application owns the full editing schema; this package
// embodies the subset the backend needs to validate, snapshot, and render.
package project

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"splice/internal/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Source references one media file on disk.
type Source struct {
	ID   string `json:"id" validate:"required"`
	Path string `json:"path" validate:"required"`
}

// Clip places a slice of a source on the timeline. In/Out are seconds into
// the source; Offset is the clip's position on the timeline.
type Clip struct {
	SourceID string  `json:"source_id" validate:"required"`
	In       float64 `json:"in" validate:"gte=0"`
	Out      float64 `json:"out" validate:"gt=0"`
	Offset   float64 `json:"offset" validate:"gte=0"`
}

// Track groups clips of one kind.
type Track struct {
	ID    string `json:"id" validate:"required"`
	Kind  string `json:"kind" validate:"required,oneof=video audio overlay"`
	Clips []Clip `json:"clips" validate:"required,min=1,dive"`
}

// Transition blends two adjacent clips, addressed by timeline clip index.
type Transition struct {
	FromClip int     `json:"from_clip" validate:"gte=0"`
	ToClip   int     `json:"to_clip" validate:"gte=0"`
	Kind     string  `json:"kind" validate:"required,oneof=cut fade dissolve wipe"`
	Duration float64 `json:"duration" validate:"gt=0"`
}

// Settings holds output format and encode parameters.
type Settings struct {
	Width         int     `json:"width" validate:"gt=0"`
	Height        int     `json:"height" validate:"gt=0"`
	FPS           float64 `json:"fps" validate:"gte=0"`
	Duration      float64 `json:"duration" validate:"gt=0"`
	Codec         string  `json:"codec"`
	Bitrate       string  `json:"bitrate"`
	Preset        string  `json:"preset"`
	HardwareAccel bool    `json:"hardware_accel"`
}

// Project is the declarative description of one render.
type Project struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name" validate:"required"`
	Sources     []Source     `json:"sources" validate:"required,min=1,dive"`
	Tracks      []Track      `json:"tracks" validate:"required,min=1,dive"`
	Transitions []Transition `json:"transitions" validate:"dive"`
	Settings    Settings     `json:"settings"`
}

// Validate checks schema consistency: struct-level constraints plus
// cross-references (clips must point at declared sources, out after in).
// Source files are NOT checked for existence here; that is the validation
// stage's job because it is an environment concern, not a schema one.
func (p *Project) Validate() error {
	if p == nil {
		return services.Wrap(services.ErrValidation, "project", "validate", "nil project", nil)
	}
	if err := validate.Struct(p); err != nil {
		return services.Wrap(services.ErrValidation, "project", "validate", "schema check failed", err)
	}

	sources := make(map[string]struct{}, len(p.Sources))
	for _, src := range p.Sources {
		if _, dup := sources[src.ID]; dup {
			return services.Wrap(services.ErrValidation, "project", "validate",
				fmt.Sprintf("duplicate source id %q", src.ID), nil)
		}
		sources[src.ID] = struct{}{}
	}

	clipCount := 0
	for _, track := range p.Tracks {
		for i, clip := range track.Clips {
			if _, ok := sources[clip.SourceID]; !ok {
				return services.Wrap(services.ErrValidation, "project", "validate",
					fmt.Sprintf("track %q clip %d references unknown source %q", track.ID, i, clip.SourceID), nil)
			}
			if clip.Out <= clip.In {
				return services.Wrap(services.ErrValidation, "project", "validate",
					fmt.Sprintf("track %q clip %d has out %.3f before in %.3f", track.ID, i, clip.Out, clip.In), nil)
			}
		}
		clipCount += len(track.Clips)
	}

	for i, tr := range p.Transitions {
		if tr.FromClip == tr.ToClip {
			return services.Wrap(services.ErrValidation, "project", "validate",
				fmt.Sprintf("transition %d joins clip %d to itself", i, tr.FromClip), nil)
		}
		if tr.FromClip >= clipCount || tr.ToClip >= clipCount {
			return services.Wrap(services.ErrValidation, "project", "validate",
				fmt.Sprintf("transition %d references clip beyond the %d timeline clips", i, clipCount), nil)
		}
	}
	return nil
}

// Clone returns a deep copy safe for mutation by the renderer fallback.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Sources = append([]Source(nil), p.Sources...)
	clone.Transitions = append([]Transition(nil), p.Transitions...)
	clone.Tracks = make([]Track, len(p.Tracks))
	for i, track := range p.Tracks {
		copied := track
		copied.Clips = append([]Clip(nil), track.Clips...)
		clone.Tracks[i] = copied
	}
	return &clone
}

// DisableHardwareAccel turns off hardware-accelerated encoding. The renderer
// calls this on a cloned snapshot when retrying a GPU failure on the software
// path.
func (p *Project) DisableHardwareAccel() {
	p.Settings.HardwareAccel = false
}

// SourceByID resolves a source reference, reporting whether it exists.
func (p *Project) SourceByID(id string) (Source, bool) {
	for _, src := range p.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

// EstimatedTotalFrames estimates the output frame count from the configured
// duration and frame rate. defaultFPS applies when the project leaves FPS
// unset.
func (p *Project) EstimatedTotalFrames(defaultFPS float64) int64 {
	fps := p.Settings.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	if fps <= 0 || p.Settings.Duration <= 0 {
		return 0
	}
	return int64(math.Round(p.Settings.Duration * fps))
}

// Parse decodes a project snapshot from raw JSON.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "load", "malformed project file", err)
	}
	return &p, nil
}

// LoadFile reads and decodes a project snapshot from disk.
func LoadFile(path string) (*Project, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "project", "load", "empty path", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "project", "load", path, err)
	}
	return Parse(data)
}
