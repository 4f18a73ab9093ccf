package encoding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"subtitler/internal/logging"
	"subtitler/internal/media/ffprobe"
	"subtitler/internal/services"
)

// CommandRunner executes an external command, streaming its stderr to the
// supplied writer. It must honour ctx cancellation.
type CommandRunner func(ctx context.Context, stderr io.Writer, name string, args ...string) error

// Prober inspects a finished output file.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Result describes a successful encode.
type Result struct {
	OutputPath string
	Size       int64
	Elapsed    time.Duration
}

// Encoder burns caption files into videos with ffmpeg.
type Encoder struct {
	binary       string
	ffprobe      string
	logger       *slog.Logger
	run          CommandRunner
	probe        Prober
	defaultParam Params
}

// New creates an encoder that invokes binary (default "ffmpeg").
func New(binary string, params Params, logger *slog.Logger) *Encoder {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Encoder{
		binary:       binary,
		logger:       logging.NewComponentLogger(logger, "encoder"),
		run:          execRunner,
		defaultParam: NormalizeParams(params),
	}
}

// WithCommandRunner replaces process execution (for testing).
func (e *Encoder) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		e.run = runner
	}
}

// WithVerification enables an ffprobe check that the output carries a video
// stream.
func (e *Encoder) WithVerification(binary string, probe Prober) {
	e.ffprobe = binary
	e.probe = probe
}

// Params returns the encoder's default parameters.
func (e *Encoder) Params() Params {
	return e.defaultParam
}

// Encode runs job to completion. Any failure removes the partial output and
// returns an error tagged with services.ErrEncoding whose message carries the
// tail of ffmpeg's stderr.
func (e *Encoder) Encode(ctx context.Context, job Job) (Result, error) {
	if strings.TrimSpace(job.InputPath) == "" || strings.TrimSpace(job.OutputPath) == "" {
		return Result{}, services.Wrap(services.ErrInternal, "encode", "validate job", "input and output paths are required", nil)
	}
	if job.Params == (Params{}) {
		job.Params = e.defaultParam
	}
	job.Params = NormalizeParams(job.Params)

	args := BuildArgs(job)
	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("ffmpeg starting",
		logging.String("input", job.InputPath),
		logging.Int("crf", job.Params.CRF),
		logging.String("preset", job.Params.Preset),
		logging.String("args", strings.Join(args, " ")),
	)

	stderr := newTailBuffer(stderrLimit)
	started := time.Now()
	runErr := e.run(ctx, stderr, e.binary, args...)
	elapsed := time.Since(started)

	if runErr != nil {
		removePartial(job.OutputPath)
		detail := strings.TrimSpace(stderr.String())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "interrupted", ctxErr)
		}
		if detail == "" {
			detail = "no diagnostic output"
		}
		return Result{}, services.Wrap(services.ErrEncoding, "encode", "ffmpeg", detail, runErr)
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		removePartial(job.OutputPath)
		return Result{}, services.Wrap(services.ErrEncoding, "encode", "stat output", "ffmpeg exited cleanly but produced no output", err)
	}
	if info.Size() == 0 {
		removePartial(job.OutputPath)
		return Result{}, services.Wrap(services.ErrEncoding, "encode", "stat output", "ffmpeg produced an empty file", nil)
	}

	if e.probe != nil {
		probed, err := e.probe(ctx, e.ffprobe, job.OutputPath)
		if err != nil {
			removePartial(job.OutputPath)
			return Result{}, services.Wrap(services.ErrEncoding, "encode", "verify output", "ffprobe rejected output", err)
		}
		if probed.VideoStreamCount() == 0 {
			removePartial(job.OutputPath)
			return Result{}, services.Wrap(services.ErrEncoding, "encode", "verify output", "output has no video stream", nil)
		}
	}

	logger.Debug("ffmpeg finished",
		logging.Duration("elapsed", elapsed),
		logging.Int64("size_bytes", info.Size()),
	)
	return Result{OutputPath: job.OutputPath, Size: info.Size(), Elapsed: elapsed}, nil
}

func removePartial(path string) {
	_ = os.Remove(path)
}

func execRunner(ctx context.Context, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
