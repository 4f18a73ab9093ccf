package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"subtitler/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file and environment overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if _, err := os.Stat(ctx.configPath); err != nil {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			for _, warning := range cfg.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			if len(cfg.Warnings) > 0 {
				fmt.Fprintf(out, "Configuration valid with %d fallback(s)\n", len(cfg.Warnings))
				return nil
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

type configEntry struct {
	Key   string `json:"key"`
	Env   string `json:"env,omitempty"`
	Value string `json:"value"`
}

func configEntries(cfg *config.Config) []configEntry {
	return []configEntry{
		{Key: "server.bind", Env: "SUBTITLER_BIND", Value: cfg.Server.Bind},
		{Key: "server.read_header_timeout_seconds", Value: strconv.Itoa(cfg.Server.ReadHeaderTimeoutSecs)},
		{Key: "server.shutdown_timeout_seconds", Value: strconv.Itoa(cfg.Server.ShutdownTimeoutSeconds)},
		{Key: "upload.max_mb", Env: "MAX_UPLOAD_MB", Value: strconv.Itoa(cfg.Upload.MaxMB)},
		{Key: "upload.chunk_size_kib", Value: strconv.Itoa(cfg.Upload.ChunkSizeKiB)},
		{Key: "concurrency.max_jobs", Env: "MAX_CONCURRENCY", Value: strconv.Itoa(cfg.Concurrency.MaxJobs)},
		{Key: "transcription.model", Env: "WHISPER_MODEL", Value: cfg.Transcription.Model},
		{Key: "transcription.device", Env: "DEVICE", Value: cfg.Transcription.Device},
		{Key: "transcription.compute_type", Env: "COMPUTE_TYPE", Value: cfg.Transcription.ComputeType},
		{Key: "transcription.default_language", Value: cfg.Transcription.DefaultLanguage},
		{Key: "transcription.cache_dir", Value: cfg.Transcription.CacheDir},
		{Key: "encoding.crf", Env: "FFMPEG_CRF", Value: strconv.Itoa(cfg.Encoding.CRF)},
		{Key: "encoding.preset", Env: "FFMPEG_PRESET", Value: cfg.Encoding.Preset},
		{Key: "encoding.ffmpeg_binary", Value: cfg.Encoding.FFmpegBinary},
		{Key: "captions.max_line_width", Value: strconv.Itoa(cfg.Captions.MaxLineWidth)},
		{Key: "captions.overlap", Value: cfg.Captions.Overlap},
		{Key: "workspace.temp_root", Env: "SUBTITLER_TEMP_ROOT", Value: cfg.Workspace.TempRoot},
		{Key: "workspace.stale_after_minutes", Value: strconv.Itoa(cfg.Workspace.StaleAfterMinutes)},
		{Key: "workspace.sweep_schedule", Value: cfg.Workspace.SweepSchedule},
		{Key: "logging.format", Env: "LOG_FORMAT", Value: cfg.Logging.Format},
		{Key: "logging.level", Env: "LOG_LEVEL", Value: cfg.Logging.Level},
		{Key: "logging.file", Value: cfg.Logging.File},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries := configEntries(cfg)
			if asJSON {
				return writeJSON(cmd, struct {
					Path     string        `json:"path"`
					Values   []configEntry `json:"values"`
					Warnings []string      `json:"warnings"`
				}{ctx.configPath, entries, append([]string{}, cfg.Warnings...)})
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				value := e.Value
				if value == "" {
					value = "(unset)"
				}
				rows = append(rows, []string{e.Key, e.Env, value})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Key", "Env", "Value"}, rows))
			for _, warning := range cfg.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
