package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"subtitler/internal/config"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func load(t *testing.T, path string, env map[string]string) *config.Config {
	t.Helper()
	cfg, _, _, err := config.LoadWithOptions(path, config.LoadOptions{Lookup: lookupFrom(env)})
	if err != nil {
		t.Fatalf("LoadWithOptions returned error: %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, resolved, exists, err := config.LoadWithOptions("", config.LoadOptions{Lookup: lookupFrom(nil)})
	if err != nil {
		t.Fatalf("LoadWithOptions returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Concurrency.MaxJobs != 1 || cfg.Upload.MaxMB != 200 {
		t.Fatalf("unexpected limits: %+v %+v", cfg.Concurrency, cfg.Upload)
	}
	if cfg.Transcription.Model != "small" || cfg.Transcription.Device != "auto" || cfg.Transcription.ComputeType != "" {
		t.Fatalf("unexpected transcription defaults: %+v", cfg.Transcription)
	}
	if cfg.Encoding.CRF != 23 || cfg.Encoding.Preset != "medium" {
		t.Fatalf("unexpected encoding defaults: %+v", cfg.Encoding)
	}
	if cfg.Server.Bind != "127.0.0.1:8000" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.MaxUploadBytes() != 200*1024*1024 {
		t.Fatalf("unexpected max upload bytes: %d", cfg.MaxUploadBytes())
	}
	if cfg.ChunkSizeBytes() != 1<<20 {
		t.Fatalf("unexpected chunk size: %d", cfg.ChunkSizeBytes())
	}
	if len(cfg.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", cfg.Warnings)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name  string
		env   map[string]string
		check func(*config.Config) bool
	}{
		{"crf out of range", map[string]string{"FFMPEG_CRF": "99"}, func(c *config.Config) bool { return c.Encoding.CRF == 23 }},
		{"crf negative", map[string]string{"FFMPEG_CRF": "-1"}, func(c *config.Config) bool { return c.Encoding.CRF == 23 }},
		{"crf not a number", map[string]string{"FFMPEG_CRF": "high"}, func(c *config.Config) bool { return c.Encoding.CRF == 23 }},
		{"concurrency zero", map[string]string{"MAX_CONCURRENCY": "0"}, func(c *config.Config) bool { return c.Concurrency.MaxJobs == 1 }},
		{"concurrency garbage", map[string]string{"MAX_CONCURRENCY": "many"}, func(c *config.Config) bool { return c.Concurrency.MaxJobs == 1 }},
		{"upload negative", map[string]string{"MAX_UPLOAD_MB": "-5"}, func(c *config.Config) bool { return c.Upload.MaxMB == 200 }},
		{"unknown preset", map[string]string{"FFMPEG_PRESET": "turbo"}, func(c *config.Config) bool { return c.Encoding.Preset == "medium" }},
		{"unknown device", map[string]string{"DEVICE": "tpu"}, func(c *config.Config) bool { return c.Transcription.Device == "auto" }},
		{"bad bind", map[string]string{"SUBTITLER_BIND": "nonsense"}, func(c *config.Config) bool { return c.Server.Bind == "127.0.0.1:8000" }},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, func(c *config.Config) bool { return c.Logging.Level == "info" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := load(t, "", tc.env)
			if !tc.check(cfg) {
				t.Fatalf("fallback not applied: %+v", cfg)
			}
			if len(cfg.Warnings) == 0 {
				t.Fatal("expected a warning to be recorded")
			}
		})
	}
}

func TestEnvOverridesAccepted(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	cfg := load(t, "", map[string]string{
		"MAX_CONCURRENCY":     "3",
		"MAX_UPLOAD_MB":       "50",
		"WHISPER_MODEL":       "medium.en",
		"DEVICE":              "CUDA",
		"COMPUTE_TYPE":        "float16",
		"FFMPEG_CRF":          "18",
		"FFMPEG_PRESET":       "Slow",
		"SUBTITLER_BIND":      "0.0.0.0:9000",
		"SUBTITLER_TEMP_ROOT": root,
	})
	if cfg.Concurrency.MaxJobs != 3 || cfg.Upload.MaxMB != 50 {
		t.Fatalf("unexpected limits: %+v %+v", cfg.Concurrency, cfg.Upload)
	}
	if cfg.Transcription.Model != "medium.en" || cfg.Transcription.Device != "cuda" || cfg.Transcription.ComputeType != "float16" {
		t.Fatalf("unexpected transcription: %+v", cfg.Transcription)
	}
	if cfg.Encoding.CRF != 18 || cfg.Encoding.Preset != "slow" {
		t.Fatalf("unexpected encoding: %+v", cfg.Encoding)
	}
	if cfg.Server.Bind != "0.0.0.0:9000" || cfg.Workspace.TempRoot != root {
		t.Fatalf("unexpected server/workspace: %q %q", cfg.Server.Bind, cfg.Workspace.TempRoot)
	}
	if len(cfg.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", cfg.Warnings)
	}
}

func TestLoadCustomPathWithEnvPrecedence(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subtitler.toml")

	type payload struct {
		Encoding struct {
			CRF    int    `toml:"crf"`
			Preset string `toml:"preset"`
		} `toml:"encoding"`
		Concurrency struct {
			MaxJobs int `toml:"max_jobs"`
		} `toml:"concurrency"`
	}
	custom := payload{}
	custom.Encoding.CRF = 20
	custom.Encoding.Preset = "fast"
	custom.Concurrency.MaxJobs = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.LoadWithOptions(configPath, config.LoadOptions{Lookup: lookupFrom(map[string]string{"FFMPEG_CRF": "28"})})
	if err != nil {
		t.Fatalf("LoadWithOptions returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config file to be used: %q %v", resolved, exists)
	}
	if cfg.Encoding.CRF != 28 {
		t.Fatalf("expected env to win over file, got crf %d", cfg.Encoding.CRF)
	}
	if cfg.Encoding.Preset != "fast" || cfg.Concurrency.MaxJobs != 2 {
		t.Fatalf("expected file values, got %+v %+v", cfg.Encoding, cfg.Concurrency)
	}
}

func TestFileValuesOutOfRangeFallBack(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subtitler.toml")
	content := "[encoding]\ncrf = 99\n[captions]\noverlap = \"merge\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := load(t, configPath, nil)
	if cfg.Encoding.CRF != 23 {
		t.Fatalf("expected crf fallback, got %d", cfg.Encoding.CRF)
	}
	if cfg.Captions.Overlap != "clip" {
		t.Fatalf("expected overlap fallback, got %q", cfg.Captions.Overlap)
	}
	if len(cfg.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", cfg.Warnings)
	}
}

func TestUnparseableFileFails(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subtitler.toml")
	if err := os.WriteFile(configPath, []byte("[encoding\ncrf = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.LoadWithOptions(configPath, config.LoadOptions{Lookup: lookupFrom(nil)}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDotEnvFileIsLowerPrecedenceThanEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("WHISPER_MODEL=tiny\nFFMPEG_PRESET=veryfast\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	cfg, _, _, err := config.LoadWithOptions("", config.LoadOptions{
		DotEnvPath: envPath,
		Lookup:     lookupFrom(map[string]string{"WHISPER_MODEL": "large-v3"}),
	})
	if err != nil {
		t.Fatalf("LoadWithOptions returned error: %v", err)
	}
	if cfg.Transcription.Model != "large-v3" {
		t.Fatalf("expected process env to win, got %q", cfg.Transcription.Model)
	}
	if cfg.Encoding.Preset != "veryfast" {
		t.Fatalf("expected .env value, got %q", cfg.Encoding.Preset)
	}
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, _, _, err := config.LoadWithOptions("", config.LoadOptions{
		DotEnvPath: filepath.Join(t.TempDir(), "absent.env"),
		Lookup:     lookupFrom(nil),
	})
	if err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg := load(t, path, nil)
	if len(cfg.Warnings) != 0 {
		t.Fatalf("sample config produced warnings: %v", cfg.Warnings)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	for _, name := range config.EnvVariables() {
		if !strings.Contains(string(data), name) {
			t.Fatalf("sample config does not mention %s", name)
		}
	}
}

func TestValidateRejectsHandBuiltConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Encoding.Preset = "warp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestPresetFallbackListsAcceptedPresets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := load(t, "", map[string]string{"FFMPEG_PRESET": "turbo"})
	if len(cfg.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", cfg.Warnings)
	}
	warning := cfg.Warnings[0]
	if !strings.Contains(warning, `"turbo"`) || !strings.Contains(warning, "ultrafast, superfast") || !strings.HasSuffix(warning, "using medium") {
		t.Fatalf("unexpected warning %q", warning)
	}
}
