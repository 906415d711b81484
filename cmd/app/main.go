package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/larder/internal"
	pkgconfig "github.com/starford/larder/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func importFile(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: %s import <file>", cmd.Root().Name)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Keep stdout for the summary.
	sum, err := internal.RunImport(ctx, cmd.Args().First(), cmd.String("user"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("import error: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return err
	}
	if sum.ErrorCount > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d records failed", sum.ErrorCount, sum.ErrorCount+sum.SuccessCount), 2)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	return internal.RunMCP(ctx, cmd.String("user"), internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func issueToken(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: %s token <user-id>", cmd.Root().Name)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tok, err := internal.IssueToken(cfg, cmd.Args().First(), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func main() {
	userFlag := &cli.StringFlag{
		Name:  "user",
		Usage: "User id to act as (defaults to the configured user)",
	}

	cmd := &cli.Command{
		Name:   "larder",
		Usage:  "Recipe catalog, meal planner and shopping list service",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and import inbox watcher",
				Action: serve,
			},
			{
				Name:      "import",
				Usage:     "Import recipes from a JSON, YAML or Markdown file",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{userFlag},
				Action:    importFile,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Flags:  []cli.Flag{userFlag},
				Action: serveMCP,
			},
			{
				Name:      "token",
				Usage:     "Sign a development JWT with auth.jwt_secret",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: 24 * time.Hour,
					},
				},
				Action: issueToken,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
