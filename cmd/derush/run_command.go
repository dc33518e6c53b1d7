package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"derush/internal/config"
	"derush/internal/deps"
	"derush/internal/queue"
	"derush/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var downloadOnly bool

	cmd := &cobra.Command{
		Use:   "run <url|path>",
		Short: "Derush a single source end to end",
		Long: "Queue one source and process it to completion in the foreground.\n" +
			"URLs are resolved and downloaded first; local files go straight to\n" +
			"silence analysis.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := deps.Verify(cfg); err != nil {
				return err
			}

			logger, err := newRunLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				source := strings.TrimSpace(args[0])
				var item *queue.Item
				if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
					item, err = store.NewRemote(signalCtx, source, downloadOnly)
				} else {
					var absPath string
					absPath, err = resolveLocalFile(source)
					if err != nil {
						return err
					}
					item, err = store.NewLocalFile(signalCtx, absPath)
				}
				if err != nil {
					return err
				}

				manager := workflow.NewManager(cfg, store, logger, workflow.DefaultStages(cfg, store, logger))
				if err := manager.RunToCompletion(signalCtx); err != nil {
					return err
				}

				final, err := store.GetByID(signalCtx, item.ID)
				if err != nil {
					return err
				}
				if final == nil {
					return fmt.Errorf("item %d disappeared from the queue", item.ID)
				}
				switch final.Status {
				case queue.StatusCompleted:
					fmt.Fprintf(cmd.OutOrStdout(), "Done: %s\n", final.OutputPath)
					return nil
				case queue.StatusFailed:
					return fmt.Errorf("processing failed: %s", final.ErrorMessage)
				default:
					return fmt.Errorf("processing stopped at status %s", final.Status)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&downloadOnly, "download-only", false, "Stop after reconstructing the MP4; skip silence removal")
	return cmd
}
