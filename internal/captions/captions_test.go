package captions_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"subtitler/internal/captions"
	"subtitler/internal/transcription"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.25, "00:01:01,250"},
		{3661.007, "01:01:01,007"},
		{59.9996, "00:01:00,000"},
		{3599.9999, "01:00:00,000"},
		{-2, "00:00:00,000"},
		{math.NaN(), "00:00:00,000"},
		{36000, "10:00:00,000"},
		{360000.5, "100:00:00,500"},
	}
	for _, tc := range tests {
		if got := captions.FormatTimestamp(tc.in); got != tc.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	for ms := int64(0); ms < 7_300_000; ms += 997 {
		seconds := float64(ms) / 1000
		text := captions.FormatTimestamp(seconds)
		back, err := captions.ParseTimestamp(text)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", text, err)
		}
		if math.Abs(back-seconds) > 0.0005 {
			t.Fatalf("round trip %v -> %q -> %v", seconds, text, back)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "1:2", "00:00:61,000", "00:00:01,1000", "aa:bb:cc,ddd"} {
		if _, err := captions.ParseTimestamp(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"blank", "   ", 40, nil},
		{"single line", "hello world", 40, []string{"hello world"}},
		{"exact width", "aaaa bbbb", 9, []string{"aaaa bbbb"}},
		{"break", "aaaa bbbb", 8, []string{"aaaa", "bbbb"}},
		{"long word alone", "hi supercalifragilistic ok", 10, []string{"hi", "supercalifragilistic", "ok"}},
		{"collapses whitespace", "a \t b\n c", 40, []string{"a b c"}},
		{"default width", strings.Repeat("word ", 10), 0, []string{"word word word word word word word word", "word word"}},
		{"counts runes", "ééééé ééééé", 11, []string{"ééééé ééééé"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := captions.Wrap(tc.text, tc.width)
			if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
				t.Fatalf("Wrap = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapProperties(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog and then an extraordinarilylongwordthatcannotfit appears near the end of it all"
	for width := 1; width <= 60; width++ {
		lines := captions.Wrap(text, width)
		if strings.Join(lines, " ") != strings.Join(strings.Fields(text), " ") {
			t.Fatalf("width %d: words not preserved in order: %q", width, lines)
		}
		for _, line := range lines {
			if utf8.RuneCountInString(line) > width && strings.Contains(line, " ") {
				t.Fatalf("width %d: line %q exceeds width", width, line)
			}
		}
	}
}

func TestBuildScenarioSingleCue(t *testing.T) {
	doc := captions.Build([]transcription.Segment{{Start: 0.0, End: 1.5, Text: "hello world"}}, captions.Options{})
	want := "1\n00:00:00,000 --> 00:00:01,500\nhello world\n\n"
	if got := string(doc.Bytes()); got != want {
		t.Fatalf("unexpected srt:\n%q\nwant\n%q", got, want)
	}
}

func TestBuildSkipsBlankAndNumbersSequentially(t *testing.T) {
	segments := []transcription.Segment{
		{Start: 0, End: 1, Text: "one"},
		{Start: 1, End: 2, Text: "   "},
		{Start: 2, End: 3, Text: "two"},
	}
	doc := captions.Build(segments, captions.Options{Width: 40})
	if doc.Len() != 2 {
		t.Fatalf("expected 2 cues, got %d", doc.Len())
	}
	if doc.Cues[1].Index != 2 || doc.Cues[1].Lines[0] != "two" {
		t.Fatalf("unexpected second cue: %+v", doc.Cues[1])
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuildOverlapPolicies(t *testing.T) {
	segments := []transcription.Segment{
		{Start: 2, End: 5, Text: "later"},
		{Start: 0, End: 3, Text: "first"},
	}
	clipped := captions.Build(segments, captions.Options{Overlap: captions.OverlapClip})
	if clipped.Cues[0].Lines[0] != "first" || clipped.Cues[0].End != 2 {
		t.Fatalf("expected first cue clipped to 2s, got %+v", clipped.Cues[0])
	}
	passthrough := captions.Build(segments, captions.Options{Overlap: captions.OverlapPassthrough})
	if passthrough.Cues[0].End != 3 {
		t.Fatalf("expected passthrough to keep 3s, got %+v", passthrough.Cues[0])
	}
}

func TestBuildClampsReversedRange(t *testing.T) {
	doc := captions.Build([]transcription.Segment{{Start: 4, End: 1, Text: "odd"}}, captions.Options{})
	if doc.Cues[0].End != doc.Cues[0].Start {
		t.Fatalf("expected end clamped to start, got %+v", doc.Cues[0])
	}
}

func TestParseRoundTrip(t *testing.T) {
	segments := []transcription.Segment{
		{Start: 0.5, End: 2.25, Text: "a caption that is long enough to need wrapping across lines"},
		{Start: 3, End: 4, Text: "short"},
	}
	doc := captions.Build(segments, captions.Options{Width: 20})
	parsed, err := captions.Parse(doc.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Len() != doc.Len() {
		t.Fatalf("cue count mismatch: %d vs %d", parsed.Len(), doc.Len())
	}
	for i := range doc.Cues {
		if strings.Join(parsed.Cues[i].Lines, "\n") != strings.Join(doc.Cues[i].Lines, "\n") {
			t.Fatalf("cue %d lines differ: %q vs %q", i, parsed.Cues[i].Lines, doc.Cues[i].Lines)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.srt")
	doc := captions.Build([]transcription.Segment{{Start: 0, End: 1, Text: "x"}}, captions.Options{})
	if err := doc.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "\r") {
		t.Fatal("expected \\n line endings only")
	}
}

func TestParseOverlapPolicy(t *testing.T) {
	if p, ok := captions.ParseOverlapPolicy(" Passthrough "); !ok || p != captions.OverlapPassthrough {
		t.Fatalf("unexpected %q %v", p, ok)
	}
	if p, ok := captions.ParseOverlapPolicy("merge"); ok || p != captions.OverlapClip {
		t.Fatalf("unexpected %q %v", p, ok)
	}
}
