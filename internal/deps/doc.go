// Package deps checks for the external programs the caption pipeline runs:
// ffmpeg, ffprobe and uvx.
package deps
