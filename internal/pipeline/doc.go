// Package pipeline runs one render job through the fixed stage sequence:
// validation, preprocessing, composition, encoding, finalization. Each
// stage works over a per-job Context; the runner reports stage-boundary
// progress through the tracker and honors cooperative cancellation, which
// is observed only between stages.
package pipeline
