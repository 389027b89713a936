// Package services defines shared failure-handling utilities consumed by the
// render pipeline, the renderer, and external tool integrations.
//
// Key responsibilities:
//   - Sentinel error markers plus the Wrap helper that tag failures with a
//     classification the renderer acts on (validation vs media vs encoder).
//   - Typed RenderError and EncoderError values carrying positional context
//     (job id, stage, encoder exit state) through the error chain.
//   - Classification of encoder stderr into GPU-related and transient
//     categories, which drives the hardware-to-software fallback.
//   - Context helpers that stamp job ids and stage names for logging.
package services
