// Package httpapi serves the caption pipeline over HTTP.
//
// POST /subtitles/{lang} accepts a multipart upload in the "file" field and
// streams back the captioned MP4. Admission failures are answered with 413 or
// 422 and a {"detail": ...} body; processing failures are logged in full and
// answered with a generic 500.
package httpapi
