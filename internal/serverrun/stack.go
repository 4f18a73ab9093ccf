package serverrun

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"subtitler/internal/captions"
	"subtitler/internal/config"
	"subtitler/internal/encoding"
	"subtitler/internal/gate"
	"subtitler/internal/logging"
	"subtitler/internal/media/ffprobe"
	"subtitler/internal/pipeline"
	"subtitler/internal/services/whisperx"
	"subtitler/internal/transcription"
	"subtitler/internal/upload"
	"subtitler/internal/workspace"
)

// Stack is the wired caption pipeline shared by the server and the burn
// command.
type Stack struct {
	Orchestrator *pipeline.Orchestrator
	Workspaces   *workspace.Manager
	Encoder      *encoding.Encoder
	Transcriber  *whisperx.Service
}

// StackOptions overrides pieces of the stack, mainly for tests.
type StackOptions struct {
	// TempRoot replaces cfg.Workspace.TempRoot when set.
	TempRoot string
	// Transcriber replaces the WhisperX service when set.
	Transcriber transcription.Transcriber
}

// BuildStack wires config into a ready orchestrator. The caller owns Close.
func BuildStack(cfg *config.Config, logger *slog.Logger, opts StackOptions) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	root := strings.TrimSpace(opts.TempRoot)
	if root == "" {
		root = cfg.Workspace.TempRoot
	}
	manager, err := workspace.Open(workspace.Options{
		Root:      root,
		ChunkSize: cfg.ChunkSizeBytes(),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	whisper := whisperx.NewService(whisperx.Config{
		Model:         cfg.Transcription.Model,
		Device:        cfg.Transcription.Device,
		ComputeType:   cfg.Transcription.ComputeType,
		CacheDir:      cfg.Transcription.CacheDir,
		FFprobeBinary: cfg.FFprobeBinary(),
	}, cfg.Encoding.FFmpegBinary, logger)

	var tr transcription.Transcriber = whisper
	if opts.Transcriber != nil {
		tr = opts.Transcriber
	}

	enc := encoding.New(cfg.Encoding.FFmpegBinary, encoding.Params{CRF: cfg.Encoding.CRF, Preset: cfg.Encoding.Preset}, logger)
	enc.WithVerification(cfg.FFprobeBinary(), ffprobe.Inspect)

	overlap, _ := captions.ParseOverlapPolicy(cfg.Captions.Overlap)
	orch, err := pipeline.New(pipeline.Options{
		Validator:   upload.NewValidator(cfg.MaxUploadBytes()),
		Workspaces:  manager,
		Gate:        gate.New(cfg.Concurrency.MaxJobs),
		Transcriber: tr,
		Encoder:     enc,
		Captions:    captions.Options{Width: cfg.Captions.MaxLineWidth, Overlap: overlap},
		Logger:      logger,
	})
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	return &Stack{Orchestrator: orch, Workspaces: manager, Encoder: enc, Transcriber: whisper}, nil
}

// Close releases the workspace root.
func (s *Stack) Close() error {
	if s == nil || s.Workspaces == nil {
		return nil
	}
	return s.Workspaces.Close()
}

// NewLogger builds the process logger from config. levelOverride wins over
// cfg.Logging.Level when set.
func NewLogger(cfg *config.Config, levelOverride string, development bool) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if strings.TrimSpace(levelOverride) != "" {
		level = levelOverride
	}
	outputs := []string{"stderr"}
	if cfg.Logging.File != "" {
		outputs = append(outputs, cfg.Logging.File)
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: development,
	})
}
