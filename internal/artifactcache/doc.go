// Package artifactcache keeps recently produced render artifacts in memory.
//
// The cache is split into three regions: preview frames, probed media
// metadata, and finished render descriptors. Each region is a bounded LRU
// with its own time-to-live, and all regions share one memory budget.
// Expiry is checked lazily on read; SweepExpired performs an explicit pass.
package artifactcache
