package transcription

import (
	"context"
	"math"
	"sort"
	"strings"
)

// Segment is one time-aligned span of recognised speech, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcriber turns a media file into time-aligned text. Silent media yields
// an empty slice and a nil error.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath, language string) ([]Segment, error)
}

// Func adapts a plain function to Transcriber.
type Func func(ctx context.Context, mediaPath, language string) ([]Segment, error)

// Transcribe calls f.
func (f Func) Transcribe(ctx context.Context, mediaPath, language string) ([]Segment, error) {
	return f(ctx, mediaPath, language)
}

// Normalize trims text, drops blank segments, clamps times so that
// 0 <= Start <= End, and stable-sorts by Start. The input is not modified.
func Normalize(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		start := clampSeconds(seg.Start)
		end := clampSeconds(seg.End)
		if end < start {
			end = start
		}
		out = append(out, Segment{Start: start, End: end, Text: text})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Text joins all segment text with single spaces.
func Text(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func clampSeconds(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}
