// Package ipc provides the JSON-RPC interface between the splice CLI
// and the daemon.
//
// The daemon listens on a unix socket and serves the Splice RPC
// service, a thin adapter over the daemon facade. The CLI uses Client,
// which wraps each RPC method in a typed call. Event polling supports
// an optional server-side wait so watchers do not have to busy-loop.
package ipc
