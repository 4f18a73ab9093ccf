package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"subtitler/internal/deps"
	"subtitler/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and the temp root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			depRows := make([][]string, 0, len(statuses))
			missing := 0
			for _, s := range statuses {
				detail := s.Detail
				if s.Available && s.Name == "FFmpeg" {
					detail = deps.Version(cmd.Context(), s.Command, nil)
				}
				if !s.Available && !s.Optional {
					missing++
				}
				depRows = append(depRows, []string{s.Name, s.Command, yesNo(s.Available), detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "Available", "Detail"}, depRows))

			if err := os.MkdirAll(cfg.Workspace.TempRoot, 0o700); err != nil {
				fmt.Fprintf(out, "cannot create temp root %s: %v\n", cfg.Workspace.TempRoot, err)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			for _, r := range results {
				checkRows = append(checkRows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Passed", "Detail"}, checkRows))
			for _, warning := range cfg.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}

			failed := len(preflight.Failed(results))
			if missing > 0 || failed > 0 {
				return errors.New("doctor found problems")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
