// Package tracker owns the render job registry and the progress event
// stream. Jobs are keyed by id behind one reader-writer lock; every
// lifecycle change is published to an unbounded multi-producer stream
// with a single logical consumer. Terminal jobs leave the registry as
// soon as their final event is emitted.
package tracker
