package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seantiz/taskroute/internal/config"
	"github.com/seantiz/taskroute/internal/model"
)

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <description>",
		Short: "Score a task description and print its complexity as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			// Logs go to stderr so stdout stays valid JSON.
			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return runClassify(cmd.Context(), cfg, logger, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

func runClassify(ctx context.Context, cfg config.Config, logger *slog.Logger, description string, out io.Writer) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return model.ErrInvalidTaskDescription
	}

	platforms, cls, err := newPlatforms(ctx, cfg, logger)
	if err != nil {
		return err
	}

	c, err := cls.Classify(ctx, description, platforms.Snapshot())
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
