package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type envLookup func(string) (string, bool)

// newEnvLookup layers the process environment over an optional .env file.
// The .env file never overrides a variable that is already set.
func newEnvLookup(opts LoadOptions) (envLookup, error) {
	base := opts.Lookup
	if base == nil {
		base = os.LookupEnv
	}
	path := strings.TrimSpace(opts.DotEnvPath)
	if path == "" {
		return base, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

type envBinding struct {
	name  string
	apply func(c *Config, raw string)
}

var envBindings = []envBinding{
	{"MAX_CONCURRENCY", func(c *Config, raw string) {
		c.Concurrency.MaxJobs = c.envInt("MAX_CONCURRENCY", raw, defaultMaxJobs)
	}},
	{"MAX_UPLOAD_MB", func(c *Config, raw string) {
		c.Upload.MaxMB = c.envInt("MAX_UPLOAD_MB", raw, defaultMaxUploadMB)
	}},
	{"WHISPER_MODEL", func(c *Config, raw string) { c.Transcription.Model = raw }},
	{"DEVICE", func(c *Config, raw string) { c.Transcription.Device = raw }},
	{"COMPUTE_TYPE", func(c *Config, raw string) { c.Transcription.ComputeType = raw }},
	{"FFMPEG_CRF", func(c *Config, raw string) {
		c.Encoding.CRF = c.envInt("FFMPEG_CRF", raw, Default().Encoding.CRF)
	}},
	{"FFMPEG_PRESET", func(c *Config, raw string) { c.Encoding.Preset = raw }},
	{"SUBTITLER_BIND", func(c *Config, raw string) { c.Server.Bind = raw }},
	{"SUBTITLER_TEMP_ROOT", func(c *Config, raw string) { c.Workspace.TempRoot = raw }},
	{"LOG_LEVEL", func(c *Config, raw string) { c.Logging.Level = raw }},
	{"LOG_FORMAT", func(c *Config, raw string) { c.Logging.Format = raw }},
}

// EnvVariables lists the environment variables Load honours.
func EnvVariables() []string {
	names := make([]string, 0, len(envBindings))
	for _, b := range envBindings {
		names = append(names, b.name)
	}
	return names
}

func (c *Config) applyEnv(lookup envLookup) {
	for _, b := range envBindings {
		raw, ok := lookup(b.name)
		if !ok {
			continue
		}
		b.apply(c, strings.TrimSpace(raw))
	}
}

func (c *Config) envInt(name, raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.warnf("%s=%q is not an integer; using %d", name, raw, fallback)
		return fallback
	}
	return value
}
