// Package transcription defines the contract between the caption pipeline and
// speech recognition backends, plus helpers that clean and inspect their
// output.
package transcription
