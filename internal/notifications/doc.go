// Package notifications delivers render outcomes via ntfy push messages.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when no topic is set. The daemon's event
// pump calls into this package when a job reaches a terminal state; the
// per-outcome toggles in the config decide which outcomes are pushed.
//
// Daemon code depends only on the Service interface, so alternative
// transports can be swapped in without touching the event pump.
package notifications
