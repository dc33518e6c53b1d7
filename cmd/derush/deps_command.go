package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"derush/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check availability of required external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := deps.Check(deps.Requirements(cfg))
			rows := make([][]string, 0, len(results))
			missing := false
			for _, status := range results {
				state := "available"
				detail := status.Command
				if !status.Available {
					state = "missing"
					detail = status.Detail
					if !status.Optional {
						missing = true
					}
				}
				rows = append(rows, []string{status.Name, state, detail, status.Description})
			}

			table := renderTable(
				[]string{"Tool", "State", "Detail", "Purpose"},
				rows,
				[]text.Align{text.AlignLeft, text.AlignLeft, text.AlignLeft, text.AlignLeft},
			)
			fmt.Fprint(cmd.OutOrStdout(), table)

			if missing {
				return errors.New("required tools are missing")
			}
			return nil
		},
	}
}
