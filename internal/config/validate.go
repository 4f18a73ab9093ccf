package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"subtitler/internal/captions"
	"subtitler/internal/encoding"
)

// Validate ensures the configuration is usable. Load only returns configs that
// pass; Validate exists for callers that build a Config by hand.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind: %w", err)
	}
	if c.Upload.MaxMB < 1 {
		return errors.New("upload.max_mb must be at least 1")
	}
	if c.Upload.ChunkSizeKiB < 1 {
		return errors.New("upload.chunk_size_kib must be at least 1")
	}
	if c.Concurrency.MaxJobs < 1 {
		return errors.New("concurrency.max_jobs must be at least 1")
	}
	if strings.TrimSpace(c.Transcription.Model) == "" {
		return errors.New("transcription.model must be set")
	}
	if c.Encoding.CRF < encoding.MinCRF || c.Encoding.CRF > encoding.MaxCRF {
		return fmt.Errorf("encoding.crf must be between %d and %d", encoding.MinCRF, encoding.MaxCRF)
	}
	if !encoding.ValidPreset(c.Encoding.Preset) {
		return fmt.Errorf("encoding.preset %q is not an x264 preset", c.Encoding.Preset)
	}
	if c.Captions.MaxLineWidth < 1 {
		return errors.New("captions.max_line_width must be at least 1")
	}
	if _, ok := captions.ParseOverlapPolicy(c.Captions.Overlap); !ok || c.Captions.Overlap == "" {
		return fmt.Errorf("captions.overlap %q must be clip or passthrough", c.Captions.Overlap)
	}
	if strings.TrimSpace(c.Workspace.TempRoot) == "" {
		return errors.New("workspace.temp_root must be set")
	}
	return nil
}
