package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"subtitler/internal/encoding"
	"subtitler/internal/gate"
	"subtitler/internal/logging"
	"subtitler/internal/services"
	"subtitler/internal/transcription"
	"subtitler/internal/upload"
	"subtitler/internal/workspace"
)

type fakeEncoder struct {
	mu       sync.Mutex
	jobs     []encoding.Job
	captions []string
	err      error
	hold     time.Duration
	active   atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEncoder) Encode(ctx context.Context, job encoding.Job) (encoding.Result, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}

	var srt []byte
	if job.CaptionPath != "" {
		srt, _ = os.ReadFile(job.CaptionPath)
	}
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.captions = append(f.captions, string(srt))
	f.mu.Unlock()

	if f.err != nil {
		return encoding.Result{}, f.err
	}
	if err := os.WriteFile(job.OutputPath, []byte("captioned"), 0o600); err != nil {
		return encoding.Result{}, err
	}
	return encoding.Result{OutputPath: job.OutputPath, Size: int64(len("captioned"))}, nil
}

func staticTranscriber(segments ...transcription.Segment) transcription.Transcriber {
	return transcription.Func(func(context.Context, string, string) ([]transcription.Segment, error) {
		return segments, nil
	})
}

type harness struct {
	orch    *Orchestrator
	manager *workspace.Manager
	gate    *gate.Gate
	encoder *fakeEncoder
}

func newHarness(t *testing.T, tr transcription.Transcriber, maxBytes int64, slots int) *harness {
	t.Helper()
	manager, err := workspace.Open(workspace.Options{Root: t.TempDir(), Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("open workspace manager: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })
	g := gate.New(slots)
	enc := &fakeEncoder{}
	orch, err := New(Options{
		Validator:   upload.NewValidator(maxBytes),
		Workspaces:  manager,
		Gate:        g,
		Transcriber: tr,
		Encoder:     enc,
		Logger:      logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return &harness{orch: orch, manager: manager, gate: g, encoder: enc}
}

func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	if h.manager.Active() != 0 {
		t.Fatalf("expected no active workspaces, got %d", h.manager.Active())
	}
	entries, err := os.ReadDir(h.manager.Root())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "ws-") {
			t.Fatalf("workspace %s left behind", entry.Name())
		}
	}
	if stats := h.gate.Stats(); stats.InFlight != 0 || stats.Waiting != 0 {
		t.Fatalf("gate not drained: %+v", stats)
	}
	if live := h.orch.Snapshot(); len(live) != 0 {
		t.Fatalf("requests still tracked: %+v", live)
	}
}

func request(name string, body string) Request {
	return Request{Filename: name, ContentType: "video/mp4", Body: strings.NewReader(body), Language: "en"}
}

func TestProcessDeliversCaptionedVideo(t *testing.T) {
	h := newHarness(t, staticTranscriber(transcription.Segment{Start: 0, End: 1.5, Text: "hello world"}), 1<<20, 1)

	var delivered Output
	var content []byte
	err := h.orch.Process(context.Background(), request("holiday clip.mp4", "fake video"), func(out Output) error {
		delivered = out
		var err error
		content, err = os.ReadFile(out.Path)
		return err
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if delivered.Filename != "holiday clip_subs.mp4" {
		t.Fatalf("unexpected download name %q", delivered.Filename)
	}
	if delivered.ContentType != "video/mp4" || delivered.Cues != 1 {
		t.Fatalf("unexpected output %+v", delivered)
	}
	if string(content) != "captioned" {
		t.Fatalf("unexpected content %q", content)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nhello world\n\n"
	if len(h.encoder.captions) != 1 || h.encoder.captions[0] != want {
		t.Fatalf("caption file = %q, want %q", h.encoder.captions, want)
	}
	if _, err := os.Stat(delivered.Path); !os.IsNotExist(err) {
		t.Fatal("output should be removed after delivery")
	}
	h.assertClean(t)
}

func TestProcessSilentInputSkipsCaptionFilter(t *testing.T) {
	h := newHarness(t, staticTranscriber(), 1<<20, 1)
	if err := h.orch.Process(context.Background(), request("quiet.mov", "x"), func(Output) error { return nil }); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(h.encoder.jobs) != 1 || h.encoder.jobs[0].CaptionPath != "" {
		t.Fatalf("expected captionless encode, got %+v", h.encoder.jobs)
	}
	h.assertClean(t)
}

func TestProcessCleansUpOnEveryFailure(t *testing.T) {
	transcribeErr := errors.New("model crashed")
	tests := []struct {
		name     string
		req      Request
		tr       transcription.Transcriber
		encErr   error
		deliver  func(Output) error
		maxBytes int64
		want     error
		encodes  int
	}{
		{
			name:    "unsupported extension",
			req:     request("notes.txt", "x"),
			want:    services.ErrUnsupportedExtension,
			encodes: 0,
		},
		{
			name:    "unsupported content type",
			req:     Request{Filename: "a.mp4", ContentType: "text/plain", Body: strings.NewReader("x")},
			want:    services.ErrUnsupportedContentType,
			encodes: 0,
		},
		{
			name:     "declared too large",
			req:      Request{Filename: "a.mp4", ContentLength: 100, Body: strings.NewReader("x")},
			maxBytes: 10,
			want:     services.ErrPayloadTooLarge,
		},
		{
			name:     "staged too large",
			req:      request("a.mp4", strings.Repeat("x", 11)),
			maxBytes: 10,
			want:     services.ErrPayloadTooLarge,
		},
		{
			name: "transcription failure",
			req:  request("a.mp4", "x"),
			tr: transcription.Func(func(context.Context, string, string) ([]transcription.Segment, error) {
				return nil, transcribeErr
			}),
			want: services.ErrTranscription,
		},
		{
			name:    "encoding failure",
			req:     request("a.mp4", "x"),
			encErr:  services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "Invalid data found", errors.New("exit status 1")),
			want:    services.ErrEncoding,
			encodes: 1,
		},
		{
			name:    "delivery failure",
			req:     request("a.mp4", "x"),
			deliver: func(Output) error { return errors.New("broken pipe") },
			want:    services.ErrInternal,
			encodes: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := tc.tr
			if tr == nil {
				tr = staticTranscriber(transcription.Segment{Start: 0, End: 1, Text: "hi"})
			}
			maxBytes := tc.maxBytes
			if maxBytes == 0 {
				maxBytes = 1 << 20
			}
			h := newHarness(t, tr, maxBytes, 1)
			h.encoder.err = tc.encErr
			deliver := tc.deliver
			if deliver == nil {
				deliver = func(Output) error { return nil }
			}

			err := h.orch.Process(context.Background(), tc.req, deliver)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := len(h.encoder.jobs); got != tc.encodes {
				t.Fatalf("expected %d encodes, got %d", tc.encodes, got)
			}
			h.assertClean(t)
		})
	}
}

func TestProcessTooLargeMessage(t *testing.T) {
	h := newHarness(t, staticTranscriber(), 2<<20, 1)
	err := h.orch.Process(context.Background(), request("a.mp4", strings.Repeat("x", 2<<20+1)), func(Output) error { return nil })
	if !errors.Is(err, services.ErrPayloadTooLarge) || !strings.Contains(err.Error(), "2 MB limit") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	tr := staticTranscriber(transcription.Segment{Start: 0, End: 1, Text: "hi"})
	h := newHarness(t, tr, 1<<20, 2)
	h.encoder.hold = 20 * time.Millisecond

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.orch.Process(context.Background(), request("a.mp4", "x"), func(Output) error { return nil })
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if peak := h.encoder.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency %d exceeds gate size", peak)
	}
	if len(h.encoder.jobs) != 6 {
		t.Fatalf("expected 6 encodes, got %d", len(h.encoder.jobs))
	}
	h.assertClean(t)
}

func TestProcessAbandonsWhileQueued(t *testing.T) {
	h := newHarness(t, staticTranscriber(), 1<<20, 1)
	release, err := h.gate.Acquire(context.Background())
	if err != nil {
		t.Fatalf("hold slot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.orch.Process(ctx, request("a.mp4", "x"), func(Output) error { return nil })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.gate.Stats().Waiting == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never queued")
		}
		time.Sleep(time.Millisecond)
	}
	snap := h.orch.Snapshot()
	if len(snap) != 1 || snap[0].State != StateQueued {
		t.Fatalf("expected one queued request, got %+v", snap)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	release()
	if len(h.encoder.jobs) != 0 {
		t.Fatal("abandoned request must not encode")
	}
	h.assertClean(t)
}

func TestProcessPassesLanguageAndRequestID(t *testing.T) {
	var gotLang string
	var gotID string
	tr := transcription.Func(func(ctx context.Context, _ string, lang string) ([]transcription.Segment, error) {
		gotLang = lang
		gotID, _ = services.RequestIDFromContext(ctx)
		return nil, nil
	})
	h := newHarness(t, tr, 1<<20, 1)
	req := request("a.mp4", "x")
	req.ID = "req-42"
	req.Language = "de"
	if err := h.orch.Process(context.Background(), req, func(Output) error { return nil }); err != nil {
		t.Fatalf("process: %v", err)
	}
	if gotLang != "de" || gotID != "req-42" {
		t.Fatalf("lang=%q id=%q", gotLang, gotID)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty options")
	}
}

func TestTransitions(t *testing.T) {
	happy := []State{StateReceived, StateValidating, StateStaged, StateQueued, StateProcessing, StateSucceeded}
	for i := 0; i+1 < len(happy); i++ {
		if !validTransition(happy[i], happy[i+1]) {
			t.Errorf("%s -> %s should be valid", happy[i], happy[i+1])
		}
	}
	invalid := [][2]State{
		{StateReceived, StateProcessing},
		{StateStaged, StateProcessing},
		{StateSucceeded, StateFailed},
		{StateFailed, StateReceived},
		{StateQueued, StateSucceeded},
	}
	for _, pair := range invalid {
		if validTransition(pair[0], pair[1]) {
			t.Errorf("%s -> %s should be invalid", pair[0], pair[1])
		}
	}
	for _, s := range happy[:len(happy)-1] {
		if !validTransition(s, StateFailed) {
			t.Errorf("%s -> failed should be valid", s)
		}
	}
}

func TestSnapshotOrdersByStart(t *testing.T) {
	r := registry{live: make(map[string]*tracker)}
	base := time.Now()
	r.add(&tracker{status: RequestStatus{ID: "b", StartedAt: base.Add(time.Second)}})
	r.add(&tracker{status: RequestStatus{ID: "a", StartedAt: base}})
	snap := r.snapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[1].ID != "b" {
		t.Fatalf("unexpected order %+v", snap)
	}
	r.remove("a")
	if got := r.snapshot(); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected snapshot after remove %+v", got)
	}
}
