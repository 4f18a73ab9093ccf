package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"subtitler/internal/captions"
	"subtitler/internal/services/whisperx"
	"subtitler/internal/transcription"
)

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	captionsCmd := &cobra.Command{
		Use:   "captions",
		Short: "Caption document utilities",
	}
	captionsCmd.AddCommand(newCaptionsRenderCommand(ctx))
	return captionsCmd
}

func newCaptionsRenderCommand(ctx *commandContext) *cobra.Command {
	var width int
	var overlap string

	cmd := &cobra.Command{
		Use:   "render <segments.json|captions.srt>",
		Short: "Render WhisperX JSON segments or re-wrap an SRT file on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := captions.Options{Width: cfg.Captions.MaxLineWidth}
			opts.Overlap, _ = captions.ParseOverlapPolicy(cfg.Captions.Overlap)
			if cmd.Flags().Changed("width") {
				opts.Width = width
			}
			if cmd.Flags().Changed("overlap") {
				policy, ok := captions.ParseOverlapPolicy(overlap)
				if !ok {
					return fmt.Errorf("overlap %q must be clip or passthrough", overlap)
				}
				opts.Overlap = policy
			}

			segments, err := loadSegments(args[0])
			if err != nil {
				return err
			}
			doc := captions.Build(segments, opts)
			_, err = doc.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().IntVar(&width, "width", captions.DefaultWidth, "Maximum characters per caption line")
	cmd.Flags().StringVar(&overlap, "overlap", string(captions.OverlapClip), "Overlap policy: clip or passthrough")
	return cmd
}

// loadSegments reads WhisperX JSON, or an existing SRT file when the name ends
// in .srt.
func loadSegments(path string) ([]transcription.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".srt") {
		raw, err := whisperx.ParseSegments(data)
		if err != nil {
			return nil, err
		}
		return whisperx.ToTranscript(raw), nil
	}

	doc, err := captions.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Len() == 0 {
		return nil, fmt.Errorf("%s: empty subtitle file", path)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc.Segments(), nil
}
