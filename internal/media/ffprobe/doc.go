// Package ffprobe wraps the ffprobe binary for media inspection. The
// preprocessing stage uses it to verify sources are readable and to extract
// the dimensions, duration, and frame rate cached per file.
package ffprobe
