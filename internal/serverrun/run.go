package serverrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"subtitler/internal/config"
	"subtitler/internal/httpapi"
	"subtitler/internal/logging"
	"subtitler/internal/preflight"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Listener replaces binding cfg.Server.Bind when set.
	Listener net.Listener
	// Stack replaces BuildStack when set; Run still closes it.
	Stack *Stack
	// Logger replaces NewLogger when set.
	Logger *slog.Logger
}

// Run starts the HTTP service and blocks until ctx ends or SIGINT/SIGTERM
// arrives, then drains in-flight requests.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = NewLogger(cfg, opts.LogLevel, opts.Development)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}

	for _, warning := range cfg.Warnings {
		logging.WarnWithContext(logger, "configuration value replaced by default", "config_fallback",
			logging.String("detail", warning),
			logging.String(logging.FieldErrorHint, "fix the value in the config file or environment"),
			logging.String(logging.FieldImpact, "service runs with the default"),
		)
	}
	logDependencySnapshot(signalCtx, logger, cfg)

	stack := opts.Stack
	if stack == nil {
		var err error
		stack, err = BuildStack(cfg, logger, StackOptions{})
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("workspace shutdown incomplete",
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_close_failed"),
				logging.String(logging.FieldErrorHint, "remove leftover ws-* directories under temp_root"),
				logging.String(logging.FieldImpact, "disk space not reclaimed until next start"),
			)
		}
	}()
	logPreflight(signalCtx, logger, cfg)

	staleAfter := time.Duration(cfg.Workspace.StaleAfterMinutes) * time.Minute
	if err := stack.Workspaces.StartSweeper(cfg.Workspace.SweepSchedule, staleAfter); err != nil {
		return err
	}

	api := httpapi.New(httpapi.Options{
		Processor:      stack.Orchestrator,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Parameters:     Parameters(cfg),
		Logger:         logger,
	})
	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSecs) * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener := opts.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", cfg.Server.Bind)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Server.Bind, err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	logger.Info("subtitler listening",
		logging.String(logging.FieldEventType, "server_started"),
		logging.String("address", listener.Addr().String()),
		logging.Int("max_concurrency", cfg.Concurrency.MaxJobs),
		logging.Int("max_upload_mb", cfg.Upload.MaxMB),
		logging.String("temp_root", stack.Workspaces.Root()),
	)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-signalCtx.Done():
	}

	logger.Info("subtitler shutting down", logging.String(logging.FieldEventType, "server_stopping"))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown timed out",
			logging.Error(err),
			logging.String(logging.FieldEventType, "server_shutdown_forced"),
			logging.String(logging.FieldErrorHint, "raise server.shutdown_timeout_seconds for long encodes"),
			logging.String(logging.FieldImpact, "in-flight requests were cut off"),
		)
		_ = srv.Close()
	}
	return nil
}

// Parameters reports the effective settings exposed by /api/status.
func Parameters(cfg *config.Config) httpapi.Parameters {
	return httpapi.Parameters{
		MaxUploadMB:    cfg.Upload.MaxMB,
		MaxConcurrency: cfg.Concurrency.MaxJobs,
		WhisperModel:   cfg.Transcription.Model,
		Device:         cfg.Transcription.Device,
		ComputeType:    cfg.Transcription.ComputeType,
		CRF:            cfg.Encoding.CRF,
		Preset:         cfg.Encoding.Preset,
		CaptionWidth:   cfg.Captions.MaxLineWidth,
		Overlap:        cfg.Captions.Overlap,
	}
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		if status.Available {
			logger.Debug("dependency available",
				logging.String(logging.FieldEventType, "dependency_snapshot"),
				logging.String("dependency", status.Name),
				logging.String("command", status.Command),
			)
			continue
		}
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, status.Description),
			logging.String(logging.FieldImpact, "caption requests will fail with 500"),
		)
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run subtitler doctor"),
			logging.String(logging.FieldImpact, "requests may fail"),
		)
	}
}
