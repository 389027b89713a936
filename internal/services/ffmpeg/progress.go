package ffmpeg

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Progress is one structured sample of the encoder's status output.
type Progress struct {
	Frame   int64
	FPS     float64
	Q       float64
	Size    int64 // bytes
	Time    time.Duration
	Bitrate float64 // kbit/s
	Speed   float64
}

// FFmpeg pads values after '=' to align columns ("frame=  100"). Collapsing
// the padding first lets plain whitespace tokenization recover key=value
// pairs.
var reAssignPadding = regexp.MustCompile(`=\s+`)

// ParseProgress converts one encoder status line into a structured sample.
// Recognized keys are frame, fps, q, size, time, bitrate, and speed; size
// accepts kB/MB/GB suffixes (powers of 1024), time is HH:MM:SS.ss, bitrate
// accepts kbits/s and Mbits/s, and speed carries a trailing "x". Malformed
// or absent tokens parse to zero; the line itself never fails to parse.
func ParseProgress(line string) Progress {
	var p Progress
	normalized := reAssignPadding.ReplaceAllString(line, "=")
	for _, token := range strings.Fields(normalized) {
		key, value, ok := strings.Cut(token, "=")
		if !ok || value == "" {
			continue
		}
		switch key {
		case "frame":
			p.Frame = parseInt(value)
		case "fps":
			p.FPS = parseFloat(value)
		case "q":
			p.Q = parseFloat(value)
		case "size", "Lsize":
			p.Size = parseSize(value)
		case "time":
			p.Time = parseClock(value)
		case "bitrate":
			p.Bitrate = parseBitrate(value)
		case "speed":
			p.Speed = parseFloat(strings.TrimSuffix(value, "x"))
		}
	}
	return p
}

// IsProgressLine reports whether a stderr line is a periodic status report
// rather than diagnostic output.
func IsProgressLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "frame=") && strings.Contains(trimmed, "time=")
}

func parseInt(value string) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseSize(value string) int64 {
	value = strings.TrimSpace(value)
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(value, "kB"):
		multiplier = 1 << 10
		value = strings.TrimSuffix(value, "kB")
	case strings.HasSuffix(value, "MB"):
		multiplier = 1 << 20
		value = strings.TrimSuffix(value, "MB")
	case strings.HasSuffix(value, "GB"):
		multiplier = 1 << 30
		value = strings.TrimSuffix(value, "GB")
	case strings.HasSuffix(value, "B"):
		value = strings.TrimSuffix(value, "B")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return int64(parsed * float64(multiplier))
}

// parseClock converts HH:MM:SS.ss into a duration. FFmpeg reports "N/A"
// before the first frame lands; that and any other malformed value parse
// to zero.
func parseClock(value string) time.Duration {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 {
		return 0
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 {
		return 0
	}
	total := float64(hours)*3600 + float64(minutes)*60 + seconds
	// Round to milliseconds: the clock carries centisecond precision and
	// naive float math would land 3.33s at 3329999999ns.
	return time.Duration(math.Round(total*1000)) * time.Millisecond
}

func parseBitrate(value string) float64 {
	value = strings.TrimSpace(value)
	multiplier := 1.0
	switch {
	case strings.HasSuffix(value, "kbits/s"):
		value = strings.TrimSuffix(value, "kbits/s")
	case strings.HasSuffix(value, "Mbits/s"):
		multiplier = 1000
		value = strings.TrimSuffix(value, "Mbits/s")
	case strings.HasSuffix(value, "bits/s"):
		multiplier = 0.001
		value = strings.TrimSuffix(value, "bits/s")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed * multiplier
}
