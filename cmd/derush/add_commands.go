package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"derush/internal/config"
	"derush/internal/queue"
)

var localFileExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".mkv": {},
	".ts":  {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var downloadOnly bool

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a share-page or playlist URL for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
				return fmt.Errorf("source must be an http(s) URL, got %q", source)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, err := store.NewRemote(cmd.Context(), source, downloadOnly)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as item #%d\n", item.Title, item.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&downloadOnly, "download-only", false, "Stop after reconstructing the MP4; skip silence removal")
	return cmd
}

func newAddFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-file <path>",
		Short: "Queue a local video file for silence removal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := resolveLocalFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, err := store.NewLocalFile(cmd.Context(), absPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued local file as item #%d (%s)\n", item.ID, filepath.Base(absPath))
				return nil
			})
		},
	}
}

func resolveLocalFile(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file does not exist: %s", absPath)
		}
		return "", fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", absPath)
	}

	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := localFileExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported file extension %q", ext)
	}
	return absPath, nil
}
