package captions

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"subtitler/internal/transcription"
)

// OverlapPolicy decides what happens when a segment runs past the start of
// the next one.
type OverlapPolicy string

const (
	// OverlapClip trims a cue's end to the next cue's start.
	OverlapClip OverlapPolicy = "clip"
	// OverlapPassthrough keeps recogniser timings unchanged.
	OverlapPassthrough OverlapPolicy = "passthrough"
)

// ParseOverlapPolicy maps a config value to a policy. Empty selects
// OverlapClip. ok is false for unknown values, which also map to OverlapClip.
func ParseOverlapPolicy(value string) (OverlapPolicy, bool) {
	switch OverlapPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", OverlapClip:
		return OverlapClip, true
	case OverlapPassthrough:
		return OverlapPassthrough, true
	default:
		return OverlapClip, false
	}
}

// Options controls Build.
type Options struct {
	Width   int
	Overlap OverlapPolicy
}

// Cue is one numbered caption.
type Cue struct {
	Index int
	Start float64
	End   float64
	Lines []string
}

// Document is an ordered list of cues numbered from 1.
type Document struct {
	Cues []Cue
}

// Build converts transcript segments into a caption document. Blank segments
// are skipped and do not consume an index.
func Build(segments []transcription.Segment, opts Options) Document {
	ordered := make([]transcription.Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	cues := make([]Cue, 0, len(ordered))
	for _, seg := range ordered {
		lines := Wrap(seg.Text, opts.Width)
		if len(lines) == 0 {
			continue
		}
		start := float64(toMillis(seg.Start)) / 1000
		end := float64(toMillis(seg.End)) / 1000
		if end < start {
			end = start
		}
		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Lines: lines})
	}

	if opts.Overlap != OverlapPassthrough {
		for i := 0; i+1 < len(cues); i++ {
			next := cues[i+1].Start
			if cues[i].End > next {
				cues[i].End = next
			}
			if cues[i].End < cues[i].Start {
				cues[i].End = cues[i].Start
			}
		}
	}
	return Document{Cues: cues}
}

// Len reports the number of cues.
func (d Document) Len() int { return len(d.Cues) }

// WriteTo serializes the document as SRT with \n line endings.
func (d Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, cue := range d.Cues {
		fmt.Fprintf(&buf, "%d\n%s --> %s\n", cue.Index, FormatTimestamp(cue.Start), FormatTimestamp(cue.End))
		for _, line := range cue.Lines {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

// Bytes returns the SRT serialization.
func (d Document) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = d.WriteTo(&buf)
	return buf.Bytes()
}

// WriteFile writes the SRT serialization to path.
func (d Document) WriteFile(path string) error {
	if err := os.WriteFile(path, d.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write captions: %w", err)
	}
	return nil
}

// Segments turns cues back into transcript segments, one per cue, with the
// cue lines joined by spaces.
func (d Document) Segments() []transcription.Segment {
	out := make([]transcription.Segment, 0, len(d.Cues))
	for _, cue := range d.Cues {
		out = append(out, transcription.Segment{Start: cue.Start, End: cue.End, Text: strings.Join(cue.Lines, " ")})
	}
	return out
}

// Validate checks cue numbering and time ranges.
func (d Document) Validate() error {
	for i, cue := range d.Cues {
		if cue.Index != i+1 {
			return fmt.Errorf("cue %d has index %d", i+1, cue.Index)
		}
		if cue.Start < 0 || cue.End < cue.Start {
			return fmt.Errorf("cue %d has invalid range %s --> %s", cue.Index, FormatTimestamp(cue.Start), FormatTimestamp(cue.End))
		}
		if len(cue.Lines) == 0 {
			return fmt.Errorf("cue %d has no text", cue.Index)
		}
		if i > 0 && cue.Start < d.Cues[i-1].Start {
			return fmt.Errorf("cue %d starts before cue %d", cue.Index, cue.Index-1)
		}
	}
	return nil
}
