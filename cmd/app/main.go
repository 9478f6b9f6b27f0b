package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/skilltally/internal"
	pkgconfig "github.com/starford/skilltally/pkg/config"
)

var version = "dev"

type runFunc func(ctx context.Context, opts ...internal.Option) error

// action loads the config and hands it to fn. A missing config file keeps
// the defaults, which scan the current directory.
func action(fn runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if notes := cmd.String("notes"); notes != "" {
			cfg.Notes.Path = notes
		}
		if limit := int(cmd.Int("limit")); limit > 0 {
			cfg.Report.TopN = limit
		}
		if cmd.Bool("ledger") {
			cfg.Tracking.Mode = internal.TrackingLedger
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}

		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "skilltally",
		Usage:   "Count skills referenced in job description notes and chart the most requested ones",
		Version: version,
		Action:  action(internal.Run),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "notes",
				Aliases: []string{"n"},
				Usage:   "Notes directory (overrides notes.path)",
				Sources: cli.EnvVars("SKILLTALLY_NOTES"),
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of skills in the chart (overrides report.top_n)",
			},
			&cli.BoolFlag{
				Name:  "ledger",
				Usage: "Track processed notes in SQLite instead of tagging them",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Run once, then again whenever notes change",
				Action: action(internal.Watch),
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API with live events and rerun on note changes",
				Action: action(internal.Serve),
			},
			{
				Name:   "top",
				Usage:  "Print the current ranking in the terminal without scanning",
				Action: action(internal.Top),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: action(internal.ServeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
