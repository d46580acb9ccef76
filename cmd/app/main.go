package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/sowilo/internal"
	pkgconfig "github.com/starford/sowilo/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Finder.Root = root
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.App.HTTP.Port = int(port)
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Arguments are rejoined so that `sowilo query src/ main` reads as the
	// recursive input "src/ main".
	raw := strings.Join(cmd.Args().Slice(), " ")
	open := int(cmd.Int("open"))

	res, err := internal.Query(ctx, raw, open, internal.WithConfig(cfg))
	if err != nil && res == nil {
		return err
	}

	if cmd.Bool("json") {
		if encErr := renderJSON(os.Stdout, res); encErr != nil {
			return encErr
		}
	} else {
		renderText(os.Stdout, res, isatty.IsTerminal(os.Stdout.Fd()) && !cmd.Bool("no-color"))
	}
	return err
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file (.yaml or .toml)",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
	rootFlag := &cli.StringFlag{
		Name:    "root",
		Aliases: []string{"r"},
		Usage:   "Search root for relative queries (default: home directory)",
		Sources: cli.EnvVars("SOWILO_ROOT"),
	}

	cmd := &cli.Command{
		Name:    "sowilo",
		Usage:   "Incremental fuzzy finder for files and directories",
		Version: version,
		Flags:   []cli.Flag{configFlag, rootFlag},
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the finder over HTTP with an SSE event feed and metrics",
				Action: serve,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "HTTP port, overrides app.http.port",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the finder as MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:      "query",
				Aliases:   []string{"q"},
				Usage:     "Run one query and print the ranked items",
				ArgsUsage: "TEXT",
				Action:    runQuery,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the result as JSON",
					},
					&cli.IntFlag{
						Name:  "open",
						Usage: "Open the N-th item (1-based) with the system opener",
					},
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable colored output",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
