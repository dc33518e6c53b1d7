package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"derush/internal/config"
	"derush/internal/deps"
	"derush/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				printSection(out, "Configuration", colorize)
				printStatusLine(out, "Output dir", statusInfo, cfg.Paths.OutputDir, colorize)
				printStatusLine(out, "Scratch dir", statusInfo, cfg.Paths.ScratchDir, colorize)
				printStatusLine(out, "Queue database", statusInfo, store.Path(), colorize)

				printSection(out, "Dependencies", colorize)
				for _, status := range deps.Check(deps.Requirements(cfg)) {
					kind := statusOK
					detail := status.Command
					if !status.Available {
						kind = statusError
						if status.Optional {
							kind = statusWarn
						}
						detail = status.Detail
					}
					printStatusLine(out, status.Name, kind, detail, colorize)
				}

				printSection(out, "Queue", colorize)
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatsRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "  Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []text.Align{text.AlignLeft, text.AlignRight})
				fmt.Fprint(out, table)
				return nil
			})
		},
	}
}

func printSection(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func printStatusLine(out io.Writer, label string, kind statusKind, message string, colorize bool) {
	fmt.Fprintln(out, renderStatusLine(label, kind, message, colorize))
}
