// Package logging configures the zap loggers used across the daemon and CLI.
//
// All components log through *zap.Logger instances derived from one root
// logger built by NewFromConfig. Field-name constants keep structured keys
// uniform so log consumers can filter on component, job id, and stage.
package logging
