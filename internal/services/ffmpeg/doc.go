// Package ffmpeg integrates the external FFmpeg encoder: building
// deterministic filter graphs and invocations from a project snapshot,
// running the process, and parsing its textual progress stream into
// structured samples.
package ffmpeg
