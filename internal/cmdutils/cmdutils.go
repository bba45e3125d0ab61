// Package cmdutils carries the shared scaffolding of the CLI commands:
// configuration loading, logger setup, and the cobra command wrapper
// around a business function.
package cmdutils

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/truid-app/client-integration/internal/config"
)

// CobraCommand builds a command that loads the configuration,
// initialises the default logger, and hands off to the business
// function with the command's context.
func CobraCommand(use, short, long string, businessFunc func(context.Context, *config.Config) error) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := InitLogger(&cfg.Logger, cfg.Application.Name); err != nil {
				return oops.In("main").
					Wrapf(err, "Failed to initialise the logger")
			}

			ctx := cmd.Context()
			slogctx.Debug(ctx, "Starting the application")

			if err := businessFunc(ctx, cfg); err != nil {
				return oops.In("main").
					Wrapf(err, "Failed to start the main business application")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")

	return cmd
}

// InitLogger installs the configured handler as the slog default. All
// logging goes through slogctx so that request-scoped attributes attach
// automatically.
func InitLogger(cfg *config.Logger, appName string) error {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger := slog.New(slogctx.NewHandler(handler, nil)).With("application", appName)
	slog.SetDefault(logger)

	return nil
}
