// Package language provides unified language code normalization and mapping.
//
// A small table covers the common subtitle languages and their bibliographic
// ISO 639-2 variants; everything else is resolved through
// golang.org/x/text/language. WhisperX wants ISO 639-1 codes, the HTTP route
// accepts any form, and both meet here.
package language
