package encoding

import (
	"strconv"
	"strings"
)

// Job describes one burn-in encode.
type Job struct {
	InputPath   string
	CaptionPath string
	OutputPath  string
	Params      Params
}

// BuildArgs returns the ffmpeg argument list for job. Params are normalized
// first so the result is always a valid invocation. An empty CaptionPath
// re-encodes without the subtitles filter; ffmpeg cannot open a zero-cue SRT.
func BuildArgs(job Job) []string {
	params := NormalizeParams(job.Params)
	args := []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", job.InputPath,
	}
	if job.CaptionPath != "" {
		args = append(args, "-vf", SubtitlesFilter(job.CaptionPath))
	}
	return append(args,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-preset", params.Preset,
		"-crf", strconv.Itoa(params.CRF),
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-level", "4.0",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-shortest",
		job.OutputPath,
	)
}

// SubtitlesFilter builds the -vf value that burns the SRT at path into the
// video. The path passes through two ffmpeg tokenizers: the filter option
// parser and the filtergraph parser. It is quoted for the first and
// backslash-escaped for the second.
func SubtitlesFilter(path string) string {
	return "subtitles=" + escapeGraph("filename="+quoteOptionValue(path))
}

// quoteOptionValue wraps value in single quotes. Embedded quotes close the
// quoted run, emit an escaped quote, and reopen it.
func quoteOptionValue(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

var graphSpecial = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`[`, `\[`,
	`]`, `\]`,
	`,`, `\,`,
	`;`, `\;`,
)

func escapeGraph(value string) string {
	return graphSpecial.Replace(value)
}
