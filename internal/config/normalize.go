package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"subtitler/internal/captions"
	"subtitler/internal/encoding"
)

var validDevices = map[string]struct{}{"auto": {}, "cpu": {}, "cuda": {}}

func (c *Config) normalize() error {
	c.normalizeServer()
	c.normalizeUpload()
	c.normalizeTranscription()
	c.normalizeEncoding()
	c.normalizeCaptions()
	if err := c.normalizeWorkspace(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	} else if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		c.warnf("server.bind (SUBTITLER_BIND) %q is not host:port; using %s", c.Server.Bind, defaultBind)
		c.Server.Bind = defaultBind
	}
	if c.Server.ReadHeaderTimeoutSecs <= 0 {
		c.Server.ReadHeaderTimeoutSecs = defaultReadHeaderTimeoutSecs
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = defaultShutdownTimeoutSeconds
	}
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxMB < 1 {
		c.warnf("upload.max_mb (MAX_UPLOAD_MB) %d is below 1; using %d", c.Upload.MaxMB, defaultMaxUploadMB)
		c.Upload.MaxMB = defaultMaxUploadMB
	}
	if c.Upload.ChunkSizeKiB < 1 {
		c.Upload.ChunkSizeKiB = defaultChunkSizeKiB
	}
	if c.Concurrency.MaxJobs < 1 {
		c.warnf("concurrency.max_jobs (MAX_CONCURRENCY) %d is below 1; using %d", c.Concurrency.MaxJobs, defaultMaxJobs)
		c.Concurrency.MaxJobs = defaultMaxJobs
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperModel
	}
	c.Transcription.Device = strings.ToLower(strings.TrimSpace(c.Transcription.Device))
	if c.Transcription.Device == "" {
		c.Transcription.Device = defaultDevice
	} else if _, ok := validDevices[c.Transcription.Device]; !ok {
		c.warnf("transcription.device (DEVICE) %q is not one of auto, cpu, cuda; using %s", c.Transcription.Device, defaultDevice)
		c.Transcription.Device = defaultDevice
	}
	c.Transcription.ComputeType = strings.ToLower(strings.TrimSpace(c.Transcription.ComputeType))
	c.Transcription.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Transcription.DefaultLanguage))
	if c.Transcription.DefaultLanguage == "" {
		c.Transcription.DefaultLanguage = defaultLanguage
	}
	if strings.TrimSpace(c.Transcription.CacheDir) == "" {
		c.Transcription.CacheDir = defaultWhisperXCacheDir
	}
	if expanded, err := expandPath(c.Transcription.CacheDir); err == nil {
		c.Transcription.CacheDir = expanded
	}
}

func (c *Config) normalizeEncoding() {
	if c.Encoding.CRF < encoding.MinCRF || c.Encoding.CRF > encoding.MaxCRF {
		c.warnf("encoding.crf (FFMPEG_CRF) %d is outside %d-%d; using %d", c.Encoding.CRF, encoding.MinCRF, encoding.MaxCRF, encoding.DefaultCRF)
		c.Encoding.CRF = encoding.DefaultCRF
	}
	c.Encoding.Preset = strings.ToLower(strings.TrimSpace(c.Encoding.Preset))
	if c.Encoding.Preset == "" {
		c.Encoding.Preset = encoding.DefaultPreset
	} else if !encoding.ValidPreset(c.Encoding.Preset) {
		c.warnf("encoding.preset (FFMPEG_PRESET) %q is not one of %s; using %s",
			c.Encoding.Preset, strings.Join(encoding.Presets(), ", "), encoding.DefaultPreset)
		c.Encoding.Preset = encoding.DefaultPreset
	}
	c.Encoding.FFmpegBinary = strings.TrimSpace(c.Encoding.FFmpegBinary)
	if c.Encoding.FFmpegBinary == "" {
		c.Encoding.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeCaptions() {
	if c.Captions.MaxLineWidth < 1 {
		if c.Captions.MaxLineWidth < 0 {
			c.warnf("captions.max_line_width %d is below 1; using %d", c.Captions.MaxLineWidth, captions.DefaultWidth)
		}
		c.Captions.MaxLineWidth = captions.DefaultWidth
	}
	policy, ok := captions.ParseOverlapPolicy(c.Captions.Overlap)
	if !ok {
		c.warnf("captions.overlap %q is not clip or passthrough; using %s", c.Captions.Overlap, captions.OverlapClip)
	}
	c.Captions.Overlap = string(policy)
}

func (c *Config) normalizeWorkspace() error {
	if strings.TrimSpace(c.Workspace.TempRoot) == "" {
		c.Workspace.TempRoot = defaultTempRoot()
	}
	root, err := expandPath(strings.TrimSpace(c.Workspace.TempRoot))
	if err != nil {
		return fmt.Errorf("workspace.temp_root: %w", err)
	}
	c.Workspace.TempRoot = root
	if c.Workspace.StaleAfterMinutes < 1 {
		c.Workspace.StaleAfterMinutes = defaultStaleAfterMinutes
	}
	c.Workspace.SweepSchedule = strings.TrimSpace(c.Workspace.SweepSchedule)
	if c.Workspace.SweepSchedule == "" {
		c.Workspace.SweepSchedule = defaultSweepSchedule
	} else if _, err := cron.ParseStandard(c.Workspace.SweepSchedule); err != nil {
		c.warnf("workspace.sweep_schedule %q is invalid (%v); using %s", c.Workspace.SweepSchedule, err, defaultSweepSchedule)
		c.Workspace.SweepSchedule = defaultSweepSchedule
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "auto", "console", "json":
	case "":
		c.Logging.Format = defaultLogFormat
	default:
		c.warnf("logging.format (LOG_FORMAT) %q is not auto, console, or json; using %s", c.Logging.Format, defaultLogFormat)
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	case "":
		c.Logging.Level = defaultLogLevel
	default:
		c.warnf("logging.level (LOG_LEVEL) %q is not debug, info, warn, or error; using %s", c.Logging.Level, defaultLogLevel)
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.File) != "" {
		if expanded, err := expandPath(strings.TrimSpace(c.Logging.File)); err == nil {
			c.Logging.File = expanded
		}
	}
}
