package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"derush/internal/fileutil"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove aged scratch directories left behind by failed runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			hours := maxAgeHours
			if hours <= 0 {
				hours = cfg.Workflow.ScratchMaxAgeHours
			}
			removed, err := fileutil.CleanScratchRoot(cfg.Paths.ScratchDir, time.Duration(hours)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d scratch directories older than %dh\n", removed, hours)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age-hours", 0, "Override the configured scratch age threshold")
	return cmd
}
