package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/geocam/internal"
	"github.com/starford/geocam/internal/capture"
	"github.com/starford/geocam/internal/markers"
	pkgconfig "github.com/starford/geocam/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// stderrLogger keeps stdout for command output.
func stderrLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
}

// withApp opens the component graph for a one-shot command.
func withApp(fn func(ctx context.Context, cmd *cli.Command, a *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, cmd, a)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireID(cmd *cli.Command) (string, error) {
	if cmd.NArg() != 1 {
		return "", errors.New("expected exactly one photo id")
	}
	return cmd.Args().First(), nil
}

func captureCmd(ctx context.Context, cmd *cli.Command, a *internal.App) error {
	res, err := a.Workflow.Take(ctx, cmd.Bool("prompt"))
	if err != nil {
		return err
	}
	switch res.Status {
	case capture.Cancelled:
		fmt.Fprintln(os.Stderr, "capture cancelled")
		return nil
	case capture.Failed:
		return fmt.Errorf("capture failed: %w", res.Err)
	}
	return printJSON(res.Photo)
}

func listCmd(_ context.Context, cmd *cli.Command, a *internal.App) error {
	photos := a.Store.GetAll()
	if cmd.Bool("favorites") {
		photos = a.Store.Favorites()
	}
	return printJSON(photos)
}

func likeCmd(ctx context.Context, cmd *cli.Command, a *internal.App) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	p, ok, err := a.Store.ToggleLike(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("photo not found: %s", id)
	}
	return printJSON(p)
}

func removeCmd(ctx context.Context, cmd *cli.Command, a *internal.App) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	ok, err := a.Store.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("photo not found: %s", id)
	}
	fmt.Fprintf(os.Stdout, "deleted: %s\n", id)
	return nil
}

func markersCmd(_ context.Context, _ *cli.Command, a *internal.App) error {
	return printJSON(markers.Layout(markers.FromPhotos(a.Store.GetAll()), a.Layout()))
}

func resolveCmd(ctx context.Context, cmd *cli.Command, a *internal.App) error {
	if a.Resolver == nil {
		return errors.New("reverse geocoding is disabled")
	}
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	p, ok := a.Store.GetByID(id)
	if !ok {
		return fmt.Errorf("photo not found: %s", id)
	}
	if !p.HasCoords() {
		return fmt.Errorf("photo %s has no coordinates", id)
	}
	addr, ok := a.Resolver.Resolve(ctx, p.Coords.Lat, p.Coords.Lng)
	if !ok {
		return errors.New("address could not be resolved")
	}
	if _, err := a.Store.SetAddress(ctx, id, addr); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, addr)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "geocam",
		Usage:  "Geotagged photo journal: capture, locate, browse on a map",
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
				Usage:  "Run the HTTP API, event stream and background workers",
				Action: serve,
			},
			{
				Name:  "capture",
				Usage: "Capture, geotag and save one photo",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "prompt", Usage: "Use the system picker instead of the camera"},
				},
				Action: withApp(captureCmd),
			},
			{
				Name:  "list",
				Usage: "Print photos newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only liked photos"},
				},
				Action: withApp(listCmd),
			},
			{
				Name:      "like",
				Usage:     "Toggle the liked flag of a photo",
				ArgsUsage: "<id>",
				Action:    withApp(likeCmd),
			},
			{
				Name:      "rm",
				Usage:     "Delete a photo and its image file",
				ArgsUsage: "<id>",
				Action:    withApp(removeCmd),
			},
			{
				Name:   "markers",
				Usage:  "Print map marker positions",
				Action: withApp(markersCmd),
			},
			{
				Name:      "resolve",
				Usage:     "Reverse geocode a photo and store its address",
				ArgsUsage: "<id>",
				Action:    withApp(resolveCmd),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
