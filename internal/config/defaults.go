package config

import (
	"os"
	"path/filepath"

	"subtitler/internal/captions"
	"subtitler/internal/encoding"
)

const (
	defaultBind                   = "127.0.0.1:8000"
	defaultReadHeaderTimeoutSecs  = 10
	defaultShutdownTimeoutSeconds = 30
	defaultMaxUploadMB            = 200
	defaultChunkSizeKiB           = 1024
	defaultMaxJobs                = 1
	defaultWhisperModel           = "small"
	defaultDevice                 = "auto"
	defaultLanguage               = "en"
	defaultWhisperXCacheDir       = "~/.cache/subtitler/whisperx"
	defaultFFmpegBinary           = "ffmpeg"
	defaultStaleAfterMinutes      = 60
	defaultSweepSchedule          = "@every 15m"
	defaultLogFormat              = "auto"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:                   defaultBind,
			ReadHeaderTimeoutSecs:  defaultReadHeaderTimeoutSecs,
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSeconds,
		},
		Upload: Upload{
			MaxMB:        defaultMaxUploadMB,
			ChunkSizeKiB: defaultChunkSizeKiB,
		},
		Concurrency: Concurrency{MaxJobs: defaultMaxJobs},
		Transcription: Transcription{
			Model:           defaultWhisperModel,
			Device:          defaultDevice,
			DefaultLanguage: defaultLanguage,
			CacheDir:        defaultWhisperXCacheDir,
		},
		Encoding: Encoding{
			CRF:          encoding.DefaultCRF,
			Preset:       encoding.DefaultPreset,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Captions: Captions{
			MaxLineWidth: captions.DefaultWidth,
			Overlap:      string(captions.OverlapClip),
		},
		Workspace: Workspace{
			TempRoot:          defaultTempRoot(),
			StaleAfterMinutes: defaultStaleAfterMinutes,
			SweepSchedule:     defaultSweepSchedule,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultTempRoot() string {
	return filepath.Join(os.TempDir(), "subtitler")
}
