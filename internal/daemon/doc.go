// Package daemon coordinates the long-running splice render process.
//
// It wires configuration, the progress tracker, the job registry, the
// renderer, the artifact cache, and the history store into a single lifecycle
// with flock-based locking to prevent multiple instances. The daemon owns the
// single consumer of the tracker event stream: its pump republishes events to
// the IPC event hub, projects terminal events into the history database, and
// pushes ntfy notifications for render outcomes.
//
// Keep orchestration logic here: render mechanics live in the renderer and
// pipeline packages while the daemon focuses on startup, shutdown, and the
// facade the IPC server calls.
package daemon
