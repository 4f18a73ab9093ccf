package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"subtitler/internal/fileutil"
	"subtitler/internal/language"
	"subtitler/internal/pipeline"
	"subtitler/internal/serverrun"
	"subtitler/internal/upload"
)

func newBurnCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var lang string

	cmd := &cobra.Command{
		Use:   "burn <video>",
		Short: "Caption a local video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			code, err := language.Resolve(lang)
			if err != nil {
				return fmt.Errorf("language %q: %w", lang, err)
			}
			spoken := code.ISO2
			if spoken == "" {
				spoken = code.ISO3
			}

			input := args[0]
			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = filepath.Join(filepath.Dir(input), upload.DownloadName(filepath.Base(input)))
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			// The server owns cfg's temp root lock; burn stages under its own root.
			root, err := os.MkdirTemp("", "subtitler-burn-")
			if err != nil {
				return fmt.Errorf("create temp root: %w", err)
			}
			defer os.RemoveAll(root)

			stack, err := serverrun.BuildStack(cfg, logger, serverrun.StackOptions{TempRoot: root})
			if err != nil {
				return err
			}
			defer stack.Close()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out, err := burnFile(runCtx, stack.Orchestrator, input, target, spoken)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d cues, %d bytes)\n", target, out.Cues, out.Size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default <name>_subs.mp4 next to the input)")
	cmd.Flags().StringVar(&lang, "lang", "en", "Spoken language (ISO 639 code)")
	return cmd
}

type processor interface {
	Process(ctx context.Context, req pipeline.Request, deliver func(pipeline.Output) error) error
}

func burnFile(ctx context.Context, proc processor, input, target, lang string) (pipeline.Output, error) {
	src, err := os.Open(input)
	if err != nil {
		return pipeline.Output{}, err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return pipeline.Output{}, err
	}

	var delivered pipeline.Output
	err = proc.Process(ctx, pipeline.Request{
		Filename:      filepath.Base(input),
		ContentLength: info.Size(),
		Body:          src,
		Language:      lang,
	}, func(out pipeline.Output) error {
		delivered = out
		_, err := fileutil.Publish(out.Path, target, 0o644)
		return err
	})
	return delivered, err
}
