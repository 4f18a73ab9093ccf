// Package pipeline drives one caption request from upload to delivered
// video.
//
// Each request moves through received, validating, staged, queued and
// processing before ending in succeeded or failed. Transcription and encoding
// run while holding a single gate slot; the result is streamed through a
// caller-supplied deliver callback after the slot is released and before the
// request's workspace is removed.
package pipeline
