// Package upload decides whether an incoming video may enter the pipeline.
//
// Checks that need only the client's declarations (extension, content type,
// declared length) run before anything is written to disk. The staged size is
// checked again once the bytes have actually arrived.
package upload
