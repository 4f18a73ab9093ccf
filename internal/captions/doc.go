// Package captions turns transcript segments into SRT caption documents.
//
// Text is wrapped greedily to a maximum line width, timestamps use the SRT
// HH:MM:SS,mmm form, and overlapping segments are either clipped to the next
// cue's start or passed through unchanged. Documents are serialized with \n
// line endings and a blank line after every cue.
package captions
