package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener settings.
type Server struct {
	Bind                   string `toml:"bind"`
	ReadHeaderTimeoutSecs  int    `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// Upload contains admission limits for incoming media.
type Upload struct {
	MaxMB        int `toml:"max_mb"`
	ChunkSizeKiB int `toml:"chunk_size_kib"`
}

// Concurrency bounds simultaneous transcription + encode jobs.
type Concurrency struct {
	MaxJobs int `toml:"max_jobs"`
}

// Transcription contains speech recognition settings passed to WhisperX.
type Transcription struct {
	Model           string `toml:"model"`
	Device          string `toml:"device"`
	ComputeType     string `toml:"compute_type"`
	DefaultLanguage string `toml:"default_language"`
	CacheDir        string `toml:"cache_dir"`
}

// Encoding contains libx264 quality settings for the captioned output.
type Encoding struct {
	CRF          int    `toml:"crf"`
	Preset       string `toml:"preset"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Captions controls how transcript segments become cues.
type Captions struct {
	MaxLineWidth int    `toml:"max_line_width"`
	Overlap      string `toml:"overlap"`
}

// Workspace contains temporary staging settings.
type Workspace struct {
	TempRoot          string `toml:"temp_root"`
	StaleAfterMinutes int    `toml:"stale_after_minutes"`
	SweepSchedule     string `toml:"sweep_schedule"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for the subtitler service.
//
// Sections by subsystem:
//   - Server: HTTP bind address and timeouts
//   - Upload: size limit and staging chunk size
//   - Concurrency: gate size
//   - Transcription: WhisperX model, device, compute type
//   - Encoding: x264 CRF and preset
//   - Captions: line width and overlap policy
//   - Workspace: temp root and stale sweeper
//   - Logging: log format and level
//
// Warnings lists every value that was rejected and replaced by its default.
type Config struct {
	Server        Server        `toml:"server"`
	Upload        Upload        `toml:"upload"`
	Concurrency   Concurrency   `toml:"concurrency"`
	Transcription Transcription `toml:"transcription"`
	Encoding      Encoding      `toml:"encoding"`
	Captions      Captions      `toml:"captions"`
	Workspace     Workspace     `toml:"workspace"`
	Logging       Logging       `toml:"logging"`

	Warnings []string `toml:"-"`
}

// LoadOptions controls where Load looks for overrides.
type LoadOptions struct {
	// DotEnvPath is read when present; a missing file is not an error.
	DotEnvPath string
	// Lookup resolves environment variables. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subtitler/config.toml")
}

// Load locates and parses a configuration file, applies .env and process
// environment overrides, and normalizes the result. Invalid values never fail
// the load; they fall back to defaults and are reported in Config.Warnings.
func Load(path string) (*Config, string, bool, error) {
	return LoadWithOptions(path, LoadOptions{DotEnvPath: ".env"})
}

// LoadWithOptions is Load with explicit override sources.
func LoadWithOptions(path string, opts LoadOptions) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	lookup, err := newEnvLookup(opts)
	if err != nil {
		return nil, "", false, err
	}
	cfg.applyEnv(lookup)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("subtitler.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxMB) * 1024 * 1024
}

// ChunkSizeBytes returns the staging copy buffer size in bytes.
func (c *Config) ChunkSizeBytes() int {
	return c.Upload.ChunkSizeKiB * 1024
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
