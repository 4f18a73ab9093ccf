// Package services defines shared utilities consumed by the caption pipeline
// and its external tool adapters.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper. Every failure is tagged
//     with one marker so the HTTP layer can translate it into a status code
//     (422/413 for admission failures, 500 for everything else) via KindOf.
//   - Context helpers that stamp request IDs and stage names for logging.
//
// Use these helpers when wiring new pipeline steps so error classification
// stays uniform from the validator down to the ffmpeg adapter.
package services
