package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"subtitler/internal/captions"
	"subtitler/internal/encoding"
	"subtitler/internal/gate"
	"subtitler/internal/language"
	"subtitler/internal/logging"
	"subtitler/internal/services"
	"subtitler/internal/transcription"
	"subtitler/internal/upload"
	"subtitler/internal/workspace"
)

const (
	captionFileName = "captions.srt"
	outputFileName  = "output.mp4"
	// OutputContentType is the media type of every delivered result.
	OutputContentType = "video/mp4"
)

// Encoder burns captions into a video.
type Encoder interface {
	Encode(ctx context.Context, job encoding.Job) (encoding.Result, error)
}

// Request is one caption job as received from a client.
type Request struct {
	// ID correlates logs; a random one is assigned when empty.
	ID            string
	Filename      string
	ContentType   string
	ContentLength int64
	Body          io.Reader
	// Language is the spoken language the recogniser should assume.
	Language string
}

// Output is a finished captioned video, valid only for the duration of the
// deliver callback.
type Output struct {
	Path        string
	Size        int64
	Filename    string
	ContentType string
	ModTime     time.Time
	Cues        int
}

// Options wires an Orchestrator.
type Options struct {
	Validator   *upload.Validator
	Workspaces  *workspace.Manager
	Gate        *gate.Gate
	Transcriber transcription.Transcriber
	Encoder     Encoder
	Captions    captions.Options
	Logger      *slog.Logger
}

// Orchestrator runs requests through validate, stage, transcribe, caption
// and encode, and guarantees the workspace is released on every path.
type Orchestrator struct {
	validator   *upload.Validator
	workspaces  *workspace.Manager
	gate        *gate.Gate
	transcriber transcription.Transcriber
	encoder     Encoder
	captions    captions.Options
	logger      *slog.Logger
	requests    registry
}

// New validates opts and returns an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Validator == nil:
		return nil, errors.New("pipeline: validator is required")
	case opts.Workspaces == nil:
		return nil, errors.New("pipeline: workspace manager is required")
	case opts.Gate == nil:
		return nil, errors.New("pipeline: gate is required")
	case opts.Transcriber == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case opts.Encoder == nil:
		return nil, errors.New("pipeline: encoder is required")
	}
	return &Orchestrator{
		validator:   opts.Validator,
		workspaces:  opts.Workspaces,
		gate:        opts.Gate,
		transcriber: opts.Transcriber,
		encoder:     opts.Encoder,
		captions:    opts.Captions,
		logger:      logging.NewComponentLogger(opts.Logger, "pipeline"),
		requests:    registry{live: make(map[string]*tracker)},
	}, nil
}

// Snapshot lists requests currently in flight, oldest first.
func (o *Orchestrator) Snapshot() []RequestStatus {
	return o.requests.snapshot()
}

// GateStats reports the concurrency gate occupancy.
func (o *Orchestrator) GateStats() gate.Stats {
	return o.gate.Stats()
}

// Process runs req to completion. On success deliver is called with the
// finished output while the workspace still exists; the workspace is removed
// once deliver returns. Errors are classified with services.KindOf.
func (o *Orchestrator) Process(ctx context.Context, req Request, deliver func(Output) error) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = services.WithRequestID(ctx, req.ID)
	logger := logging.WithContext(ctx, o.logger)

	now := time.Now()
	t := &tracker{status: RequestStatus{
		ID:        req.ID,
		State:     StateReceived,
		Filename:  upload.EffectiveFilename(req.Filename),
		Language:  req.Language,
		StartedAt: now,
		UpdatedAt: now,
	}}
	o.requests.add(t)
	defer o.requests.remove(req.ID)

	started := time.Now()
	var out Output
	err := o.run(ctx, t, req, func(result Output) error {
		out = result
		return deliver(result)
	})
	if err != nil {
		o.fail(t)
		o.logFailure(logger, err, time.Since(started))
		return err
	}
	if err := t.transition(StateSucceeded); err != nil {
		return services.Wrap(services.ErrInternal, "pipeline", "complete", "state machine", err)
	}
	logger.Info("captioned video delivered",
		logging.String(logging.FieldEventType, "request_succeeded"),
		logging.String("filename", t.snapshot().Filename),
		logging.Int("cues", out.Cues),
		logging.Int64("elapsed_ms", time.Since(started).Milliseconds()),
		logging.Int64("size_bytes", out.Size),
	)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, t *tracker, req Request, deliver func(Output) error) error {
	if err := t.transition(StateValidating); err != nil {
		return services.Wrap(services.ErrInternal, "pipeline", "validate", "state machine", err)
	}
	declared := upload.Declared{Filename: req.Filename, ContentType: req.ContentType, ContentLength: req.ContentLength}
	if err := o.validator.CheckDeclared(declared); err != nil {
		return err
	}
	if req.Body == nil {
		return services.Wrap(services.ErrInternal, "pipeline", "stage", "request has no body", nil)
	}

	return o.workspaces.With(func(ws *workspace.Workspace) error {
		media, err := o.stage(ws, req)
		if err != nil {
			return err
		}
		if err := t.transition(StateStaged); err != nil {
			return services.Wrap(services.ErrInternal, "pipeline", "stage", "state machine", err)
		}

		output, err := o.processGated(ctx, t, ws, media, req.Language)
		if err != nil {
			return err
		}
		output.Filename = upload.DownloadName(req.Filename)
		if err := deliver(output); err != nil {
			return services.Wrap(services.ErrInternal, "pipeline", "deliver", "streaming result failed", err)
		}
		return nil
	})
}

func (o *Orchestrator) stage(ws *workspace.Workspace, req Request) (upload.Media, error) {
	filename := upload.EffectiveFilename(req.Filename)
	staged, err := ws.Stage(req.Body, filename, o.validator.MaxBytes())
	if err != nil {
		if errors.Is(err, services.ErrPayloadTooLarge) {
			return upload.Media{}, upload.TooLarge(o.validator.MaxBytes())
		}
		if services.KindOf(err) == services.KindInternal && !errors.Is(err, services.ErrInternal) {
			return upload.Media{}, services.Wrap(services.ErrInternal, "pipeline", "stage", "receiving upload failed", err)
		}
		return upload.Media{}, err
	}
	if err := o.validator.CheckStaged(staged.Size); err != nil {
		return upload.Media{}, err
	}
	o.logger.Debug("upload staged",
		logging.String("workspace", ws.Dir()),
		logging.Int64("size_bytes", staged.Size),
	)
	return upload.Media{Path: staged.Path, Filename: filename, ContentType: req.ContentType, Size: staged.Size}, nil
}

// processGated holds one gate slot across transcription and encoding.
func (o *Orchestrator) processGated(ctx context.Context, t *tracker, ws *workspace.Workspace, media upload.Media, lang string) (Output, error) {
	if err := t.transition(StateQueued); err != nil {
		return Output{}, services.Wrap(services.ErrInternal, "pipeline", "queue", "state machine", err)
	}
	release, err := o.gate.Acquire(ctx)
	if err != nil {
		return Output{}, services.Wrap(services.ErrInternal, "pipeline", "queue", "abandoned while waiting for a slot", err)
	}
	defer release()
	if err := t.transition(StateProcessing); err != nil {
		return Output{}, services.Wrap(services.ErrInternal, "pipeline", "process", "state machine", err)
	}

	segments, err := o.transcribe(ctx, media.Path, lang)
	if err != nil {
		return Output{}, err
	}
	o.checkLanguage(ctx, segments, lang)

	doc := captions.Build(segments, o.captions)
	captionPath := ""
	if doc.Len() > 0 {
		captionPath = ws.Path(captionFileName)
		if err := doc.WriteFile(captionPath); err != nil {
			return Output{}, services.Wrap(services.ErrInternal, "captions", "write", "caption file", err)
		}
	}

	result, err := o.encoder.Encode(services.WithStage(ctx, "encode"), encoding.Job{
		InputPath:   media.Path,
		CaptionPath: captionPath,
		OutputPath:  ws.Path(outputFileName),
	})
	if err != nil {
		if !errors.Is(err, services.ErrEncoding) && !errors.Is(err, services.ErrInternal) {
			err = services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "", err)
		}
		return Output{}, err
	}

	return Output{
		Path:        result.OutputPath,
		Size:        result.Size,
		ContentType: OutputContentType,
		ModTime:     time.Now(),
		Cues:        doc.Len(),
	}, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, path, lang string) ([]transcription.Segment, error) {
	segments, err := o.transcriber.Transcribe(services.WithStage(ctx, "transcribe"), path, lang)
	if err != nil {
		if !errors.Is(err, services.ErrTranscription) {
			err = services.Wrap(services.ErrTranscription, "transcribe", "", "", err)
		}
		return nil, err
	}
	return transcription.Normalize(segments), nil
}

// checkLanguage warns when the transcript does not look like the requested
// language. The result is still delivered.
func (o *Orchestrator) checkLanguage(ctx context.Context, segments []transcription.Segment, lang string) {
	detected, ok := transcription.DetectLanguage(segments)
	if !ok || !detected.Reliable || lang == "" {
		return
	}
	code := detected.ISO639_3
	if detected.ISO639_1 != "" {
		code = detected.ISO639_1
	}
	if language.Matches(code, lang) {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "transcript language differs from request", "language_mismatch",
		logging.String("requested", lang),
		logging.String("detected", code),
		logging.Float64("confidence", detected.Confidence),
		logging.String(logging.FieldErrorHint, "request the spoken language in the URL path"),
		logging.String(logging.FieldImpact, "captions may be poorly recognised"),
	)
}

func (o *Orchestrator) fail(t *tracker) {
	if t.state().Terminal() {
		return
	}
	_ = t.transition(StateFailed)
}

func (o *Orchestrator) logFailure(logger *slog.Logger, err error, elapsed time.Duration) {
	kind := services.KindOf(err)
	attrs := []logging.Attr{
		logging.String("kind", string(kind)),
		logging.Error(err),
		logging.Int64("elapsed_ms", elapsed.Milliseconds()),
	}
	if services.IsValidation(err) {
		logger.Info("upload rejected", logging.Args(append(attrs, logging.String(logging.FieldEventType, "request_rejected"))...)...)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info("request abandoned", logging.Args(append(attrs, logging.String(logging.FieldEventType, "request_cancelled"))...)...)
		return
	}
	logging.ErrorWithContext(logger, "caption request failed", fmt.Sprintf("%s_failed", kind), attrs...)
}
