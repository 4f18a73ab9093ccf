// Package encoding burns SRT captions into a video with ffmpeg and libx264.
//
// BuildArgs is the single place the ffmpeg command line is assembled. The
// caption path is escaped for both of ffmpeg's filter tokenizers so quotes,
// colons, commas and brackets in temporary paths cannot break the filter.
// Encoder supervises the process: stderr is kept (bounded) for diagnostics,
// cancellation kills ffmpeg, and partial output never survives a failure.
package encoding
