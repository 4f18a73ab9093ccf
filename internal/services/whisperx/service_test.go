package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subtitler/internal/media/ffprobe"
	"subtitler/internal/services"
)

func withAudio(context.Context, string, string) (ffprobe.Result, error) {
	return ffprobe.Result{Streams: []ffprobe.Stream{
		{Index: 0, CodecType: "video"},
		{Index: 1, CodecType: "audio"},
	}}, nil
}

func argValue(args []string, flag string) (string, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func TestBuildArgsDefaults(t *testing.T) {
	svc := NewService(Config{Device: "auto"}, "", nil)
	args := svc.buildArgs("/w/audio.wav", "/w", "eng")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "whisperx /w/audio.wav --model small") {
		t.Fatalf("unexpected args %q", joined)
	}
	if v, _ := argValue(args, "--language"); v != "en" {
		t.Fatalf("expected iso2 language, got %q", v)
	}
	if v, _ := argValue(args, "--beam_size"); v != "5" {
		t.Fatalf("expected beam size 5, got %q", v)
	}
	if v, _ := argValue(args, "--vad_method"); v != "silero" {
		t.Fatalf("expected silero vad, got %q", v)
	}
	if _, ok := argValue(args, "--device"); ok {
		t.Fatal("expected --device omitted for auto")
	}
	if _, ok := argValue(args, "--compute_type"); ok {
		t.Fatal("expected --compute_type omitted when unset")
	}
}

func TestBuildArgsExplicitDevice(t *testing.T) {
	svc := NewService(Config{Model: "medium", Device: "cuda", ComputeType: "float16"}, "", nil)
	args := svc.buildArgs("/w/audio.wav", "/w", "en")
	if v, _ := argValue(args, "--device"); v != "cuda" {
		t.Fatalf("expected cuda device, got %q", v)
	}
	if v, _ := argValue(args, "--compute_type"); v != "float16" {
		t.Fatalf("expected compute type, got %q", v)
	}
	if v, _ := argValue(args, "--index-url"); v != CUDAIndexURL {
		t.Fatalf("expected CUDA index, got %q", v)
	}
	if v, _ := argValue(args, "--model"); v != "medium" {
		t.Fatalf("expected model medium, got %q", v)
	}
}

func TestTranscribeParsesOutput(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "input.mp4")
	svc := NewService(Config{}, "ffmpeg", nil)
	svc.WithProber(withAudio)
	var calls []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		calls = append(calls, name)
		switch name {
		case "ffmpeg":
			if v, _ := argValue(args, "-map"); v != "0:1" {
				t.Errorf("expected first audio stream mapped, got %q", v)
			}
			return os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o600)
		case UVXCommand:
			outDir, _ := argValue(args, "--output_dir")
			payload := `{"segments":[{"start":2.0,"end":3.0,"text":" second "},{"start":0.0,"end":1.5,"text":"hello world"},{"start":1.5,"end":1.6,"text":"  "}]}`
			return os.WriteFile(filepath.Join(outDir, "audio.json"), []byte(payload), 0o600)
		}
		return errors.New("unexpected command " + name)
	})

	segments, err := svc.Transcribe(context.Background(), media, "en")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if strings.Join(calls, ",") != "ffmpeg,uvx" {
		t.Fatalf("unexpected call order %v", calls)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segments)
	}
	if segments[0].Text != "hello world" || segments[0].End != 1.5 || segments[1].Text != "second" {
		t.Fatalf("unexpected segments %+v", segments)
	}
}

func TestTranscribeSilentInput(t *testing.T) {
	svc := NewService(Config{}, "", nil)
	svc.WithProber(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{Index: 0, CodecType: "video"}}}, nil
	})
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("no command should run for silent input")
		return nil
	})
	segments, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "silent.mp4"), "en")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if segments == nil || len(segments) != 0 {
		t.Fatalf("expected empty non-nil segments, got %#v", segments)
	}
}

func TestTranscribeCorruptMedia(t *testing.T) {
	svc := NewService(Config{}, "", nil)
	svc.WithProber(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("Invalid data found when processing input")
	})
	_, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "bad.mp4"), "en")
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription failure, got %v", err)
	}
}

func TestTranscribeRecogniserFailure(t *testing.T) {
	svc := NewService(Config{}, "", nil)
	svc.WithProber(withAudio)
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name == UVXCommand {
			return errors.New("exit status 2")
		}
		return nil
	})
	_, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "in.mp4"), "en")
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription failure, got %v", err)
	}
}

func TestParseSegments(t *testing.T) {
	segs, err := ParseSegments([]byte(`{"segments":[{"start":0.5,"end":1,"text":"hi","words":[{"word":"hi","start":0.5,"end":1}]}]}`))
	if err != nil {
		t.Fatalf("ParseSegments: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "hi" || len(segs[0].Words) != 1 {
		t.Fatalf("unexpected segments %+v", segs)
	}
	if _, err := ParseSegments([]byte("{")); err == nil {
		t.Fatal("expected parse error")
	}
}
