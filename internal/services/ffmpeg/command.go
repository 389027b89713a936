package ffmpeg

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"splice/internal/project"
	"splice/internal/services"
)

// Builder produces the textual filter graph and encoder invocation for a
// project snapshot. Implementations must be deterministic: identical inputs
// always yield identical output, so stage results can be cached and resumed.
type Builder interface {
	TimelineGraph(p *project.Project) (string, error)
	EncodeArgs(p *project.Project, graph, outputPath string) ([]string, error)
}

// GraphBuilder is the default Builder. Accel and Device come from the
// encoder configuration; the project's own settings decide whether the
// hardware path is used at all.
type GraphBuilder struct {
	Accel  string
	Device string
}

// NewGraphBuilder constructs the default command builder.
func NewGraphBuilder(accel, device string) *GraphBuilder {
	return &GraphBuilder{Accel: strings.TrimSpace(accel), Device: strings.TrimSpace(device)}
}

// TimelineGraph merges every track into one filter graph: clips are trimmed
// and normalized, then concatenated; transitions between adjacent video
// clips become xfade nodes. Video output lands in [vout]; audio, when any
// audio track exists, in [aout].
func (b *GraphBuilder) TimelineGraph(p *project.Project) (string, error) {
	if p == nil {
		return "", services.Wrap(services.ErrValidation, "builder", "timeline", "nil project", nil)
	}

	inputIndex := make(map[string]int, len(p.Sources))
	for i, src := range p.Sources {
		inputIndex[src.ID] = i
	}

	var (
		chains     []string
		videoParts []string
		audioParts []string
	)
	videoClipCount := 0

	for _, track := range p.Tracks {
		for _, clip := range track.Clips {
			idx, ok := inputIndex[clip.SourceID]
			if !ok {
				return "", services.Wrap(services.ErrValidation, "builder", "timeline",
					fmt.Sprintf("clip references unknown source %q", clip.SourceID), nil)
			}
			switch track.Kind {
			case "video", "overlay":
				label := fmt.Sprintf("vc%d", videoClipCount)
				chains = append(chains, fmt.Sprintf(
					"[%d:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,scale=%d:%d,fps=%s[%s]",
					idx, seconds(clip.In), seconds(clip.Out),
					p.Settings.Width, p.Settings.Height, fps(p.Settings.FPS), label))
				videoParts = append(videoParts, label)
				videoClipCount++
			case "audio":
				label := fmt.Sprintf("ac%d", len(audioParts))
				chains = append(chains, fmt.Sprintf(
					"[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[%s]",
					idx, seconds(clip.In), seconds(clip.Out), label))
				audioParts = append(audioParts, label)
			}
		}
	}

	if len(videoParts) == 0 {
		return "", services.Wrap(services.ErrValidation, "builder", "timeline", "no video clips on timeline", nil)
	}

	videoOut, videoChains := b.joinVideo(p, videoParts)
	chains = append(chains, videoChains...)
	if videoOut != "[vout]" {
		chains = append(chains, fmt.Sprintf("%snull[vout]", videoOut))
	}

	if len(audioParts) > 0 {
		if len(audioParts) == 1 {
			chains = append(chains, fmt.Sprintf("[%s]anull[aout]", audioParts[0]))
		} else {
			var refs strings.Builder
			for _, part := range audioParts {
				refs.WriteString("[" + part + "]")
			}
			chains = append(chains, fmt.Sprintf("%sconcat=n=%d:v=0:a=1[aout]", refs.String(), len(audioParts)))
		}
	}

	return strings.Join(chains, ";"), nil
}

// joinVideo connects the prepared video clip labels. Adjacent clips joined
// by a non-cut transition use xfade; everything else concatenates.
func (b *GraphBuilder) joinVideo(p *project.Project, parts []string) (string, []string) {
	if len(parts) == 1 {
		return "[" + parts[0] + "]", nil
	}

	transitions := make(map[int]project.Transition, len(p.Transitions))
	for _, tr := range p.Transitions {
		if tr.Kind != "cut" && tr.ToClip == tr.FromClip+1 {
			transitions[tr.FromClip] = tr
		}
	}

	if len(transitions) == 0 {
		var refs strings.Builder
		for _, part := range parts {
			refs.WriteString("[" + part + "]")
		}
		chain := fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vout]", refs.String(), len(parts))
		return "[vout]", []string{chain}
	}

	var chains []string
	current := parts[0]
	elapsed := clipDuration(p, 0)
	for i := 1; i < len(parts); i++ {
		next := fmt.Sprintf("vx%d", i)
		if tr, ok := transitions[i-1]; ok {
			offset := elapsed - tr.Duration
			if offset < 0 {
				offset = 0
			}
			chains = append(chains, fmt.Sprintf(
				"[%s][%s]xfade=transition=%s:duration=%s:offset=%s[%s]",
				current, parts[i], xfadeName(tr.Kind), seconds(tr.Duration), seconds(offset), next))
			elapsed += clipDuration(p, i) - tr.Duration
		} else {
			chains = append(chains, fmt.Sprintf(
				"[%s][%s]concat=n=2:v=1:a=0[%s]", current, parts[i], next))
			elapsed += clipDuration(p, i)
		}
		current = next
	}
	return "[" + current + "]", chains
}

// EncodeArgs renders the full ffmpeg argument list for an encode run.
func (b *GraphBuilder) EncodeArgs(p *project.Project, graph, outputPath string) ([]string, error) {
	if p == nil {
		return nil, services.Wrap(services.ErrValidation, "builder", "encode", "nil project", nil)
	}
	if strings.TrimSpace(graph) == "" {
		return nil, services.Wrap(services.ErrValidation, "builder", "encode", "empty filter graph", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "builder", "encode", "empty output path", nil)
	}

	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error", "-stats"}
	if b.useHardware(p) && b.accelFamily() == "vaapi" && b.Device != "" {
		args = append(args, "-vaapi_device", b.Device)
	}
	for _, src := range p.Sources {
		args = append(args, "-i", src.Path)
	}
	args = append(args, "-filter_complex", graph, "-map", "[vout]")
	if strings.Contains(graph, "[aout]") {
		args = append(args, "-map", "[aout]")
	}

	args = append(args, "-c:v", b.videoCodec(p))
	if preset := strings.TrimSpace(p.Settings.Preset); preset != "" {
		args = append(args, "-preset", preset)
	}
	if bitrate := strings.TrimSpace(p.Settings.Bitrate); bitrate != "" {
		args = append(args, "-b:v", bitrate)
	}
	if strings.Contains(graph, "[aout]") {
		args = append(args, "-c:a", "aac")
	}
	args = append(args, "-r", fps(p.Settings.FPS), outputPath)
	return args, nil
}

func (b *GraphBuilder) useHardware(p *project.Project) bool {
	if !p.Settings.HardwareAccel {
		return false
	}
	return b.accelFamily() != "none"
}

// accelFamily resolves "auto" to the platform's usual hardware encoder.
func (b *GraphBuilder) accelFamily() string {
	accel := strings.ToLower(b.Accel)
	if accel == "" || accel == "auto" {
		if runtime.GOOS == "darwin" {
			return "videotoolbox"
		}
		return "nvenc"
	}
	return accel
}

func (b *GraphBuilder) videoCodec(p *project.Project) string {
	family := strings.ToLower(strings.TrimSpace(p.Settings.Codec))
	switch family {
	case "", "h264", "avc":
		family = "h264"
	case "h265", "hevc":
		family = "hevc"
	case "av1":
		family = "av1"
	case "vp9":
		// No broadly available hardware encoder; always software.
		return "libvpx-vp9"
	default:
		return family
	}

	if b.useHardware(p) {
		accel := b.accelFamily()
		switch family {
		case "h264":
			return "h264_" + accel
		case "hevc":
			return "hevc_" + accel
		case "av1":
			return "av1_" + accel
		}
	}

	switch family {
	case "h264":
		return "libx264"
	case "hevc":
		return "libx265"
	case "av1":
		return "libsvtav1"
	}
	return "libx264"
}

func xfadeName(kind string) string {
	switch kind {
	case "dissolve":
		return "dissolve"
	case "wipe":
		return "wipeleft"
	default:
		return "fade"
	}
}

func clipDuration(p *project.Project, timelineIndex int) float64 {
	count := 0
	for _, track := range p.Tracks {
		if track.Kind != "video" && track.Kind != "overlay" {
			continue
		}
		for _, clip := range track.Clips {
			if count == timelineIndex {
				return clip.Out - clip.In
			}
			count++
		}
	}
	return 0
}

func seconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

func fps(value float64) string {
	if value <= 0 {
		value = 30
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

var _ Builder = (*GraphBuilder)(nil)
