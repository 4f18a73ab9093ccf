// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The transcriber uses it to tell silent uploads from corrupt ones before
// paying for speech recognition, and the encoder can use it to confirm the
// captioned output still carries a video stream.
package ffprobe
