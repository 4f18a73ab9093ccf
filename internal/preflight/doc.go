// Package preflight provides readiness checks for the filesystem paths and
// external binaries the caption service depends on.
//
// The server logs failed checks at startup without refusing to start; the
// "subtitler doctor" command prints every result.
package preflight
