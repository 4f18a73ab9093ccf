// Package whisperx adapts the WhisperX command-line recogniser, run through
// uvx, to the transcription.Transcriber contract.
//
// This package handles:
//   - Media inspection with ffprobe so silent uploads skip recognition
//   - Audio extraction to 16 kHz mono WAV
//   - WhisperX invocation (model, device, compute type, VAD, beam size)
//   - Parsing the JSON transcript into normalized segments
//
// Configuration options are passed via Config.
package whisperx
