// Package textutil provides filename sanitization for names that arrive from
// clients and end up on disk or in Content-Disposition headers.
package textutil
