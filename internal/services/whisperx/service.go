package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "subtitler/internal/language"
	"subtitler/internal/logging"
	"subtitler/internal/media/ffprobe"
	"subtitler/internal/services"
	"subtitler/internal/transcription"
)

// outputTailLimit bounds how much process output is kept in error messages.
const outputTailLimit = 4096

// Prober inspects media before transcription.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
	probe         Prober
}

var _ transcription.Transcriber = (*Service)(nil)

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string, logger *slog.Logger) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	if cfg.FFprobeBinary == "" {
		cfg.FFprobeBinary = FFprobeCommand
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
		logger:       logging.NewComponentLogger(logger, "whisperx"),
		probe:        ffprobe.Inspect,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// WithProber replaces the ffprobe call (for testing).
func (s *Service) WithProber(probe Prober) {
	if probe != nil {
		s.probe = probe
	}
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe extracts the first audio stream of mediaPath and runs WhisperX
// on it. Intermediate files are written next to mediaPath. Media without an
// audio stream yields no segments; unreadable media and recogniser failures
// return errors tagged services.ErrTranscription.
func (s *Service) Transcribe(ctx context.Context, mediaPath, language string) ([]transcription.Segment, error) {
	logger := logging.WithContext(ctx, s.logger)

	probe, err := s.probe(ctx, s.cfg.FFprobeBinary, mediaPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "ffprobe", "media could not be read", err)
	}
	audioIndex, ok := probe.FirstAudioIndex()
	if !ok {
		logger.Info("no audio stream; producing empty captions",
			logging.String(logging.FieldEventType, "transcribe_silent"),
			logging.Int("video_streams", probe.VideoStreamCount()),
		)
		return []transcription.Segment{}, nil
	}

	workDir := filepath.Join(filepath.Dir(mediaPath), "whisperx")
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "prepare", "create work directory", err)
	}
	audioPath := filepath.Join(workDir, "audio.wav")
	if err := s.ExtractFullAudio(ctx, mediaPath, audioIndex, audioPath); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "extract audio", "", err)
	}

	jsonPath, err := s.TranscribeFile(ctx, audioPath, workDir, language)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "", err)
	}
	raw, err := LoadSegments(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "parse output", "", err)
	}

	segments := ToTranscript(raw)
	logger.Debug("whisperx transcription complete",
		logging.Int("segments", len(segments)),
		logging.String("model", s.Model()),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
	)
	return segments, nil
}

// ExtractFullAudio extracts one audio stream from a source file as a mono
// 16kHz WAV file suitable for WhisperX.
func (s *Service) ExtractFullAudio(ctx context.Context, source string, audioIndex int, dest string) error {
	if err := validateAudioIndex(audioIndex); err != nil {
		return err
	}
	return s.run(ctx, s.ffmpegBinary, buildExtractArgs(source, audioIndex, dest)...)
}

// TranscribeFile runs WhisperX on a WAV file and returns the path of the JSON
// transcript it wrote into outputDir.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir, language string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := s.run(ctx, UVXCommand, s.buildArgs(source, outputDir, language)...); err != nil {
		return "", err
	}
	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(outputDir, baseName+".json"), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 24)

	device := strings.ToLower(strings.TrimSpace(s.cfg.Device))
	if device == CUDADevice {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--vad_method", VADMethodSilero,
		"--beam_size", BeamSize,
	)

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}
	if device != "" && device != DeviceAuto {
		args = append(args, "--device", device)
	}
	if ct := strings.TrimSpace(s.cfg.ComputeType); ct != "" {
		args = append(args, "--compute_type", ct)
	}
	return args
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if dir := strings.TrimSpace(s.cfg.CacheDir); dir != "" {
		cmd.Env = append(os.Environ(), "HF_HOME="+dir, "XDG_CACHE_HOME="+dir)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		return fmt.Errorf("%s: %w: %s", name, err, tail(output, outputTailLimit))
	}
	return nil
}

func tail(output []byte, limit int) string {
	text := strings.TrimSpace(string(output))
	if len(text) > limit {
		return "..." + text[len(text)-limit:]
	}
	return text
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	return ParseSegments(data)
}

// ToTranscript converts WhisperX segments into normalized transcript
// segments. Word timings are dropped.
func ToTranscript(raw []Segment) []transcription.Segment {
	segments := make([]transcription.Segment, 0, len(raw))
	for _, seg := range raw {
		segments = append(segments, transcription.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return transcription.Normalize(segments)
}

// ParseSegments decodes WhisperX JSON output.
func ParseSegments(data []byte) ([]Segment, error) {
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}
