// Package commands implements the gateway binary's CLI surface: a "serve"
// command that runs the ingress server, and a "convert" command that runs
// the same validate + request transform offline, grounded on the teacher's
// cmd/claudine/commands/{root,config}.go Execute(ctx, args) shape.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/nilsharvey/anthrogate/internal/app"
	"github.com/nilsharvey/anthrogate/internal/observability"
	"github.com/nilsharvey/anthrogate/internal/transform"
	"github.com/nilsharvey/anthrogate/internal/validate"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "gateway",
		Usage: "Anthropic Messages API to OpenAI-compatible chat-completions gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			convertCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the ingress HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "upstream--base-url",
				Usage: "upstream chat-completions API base URL",
				Value: app.DefaultConfigUpstreamBaseURL,
			},
			&cli.StringFlag{
				Name:  "upstream--model",
				Usage: "upstream model name substituted for the incoming Anthropic model",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if configPath := cmd.String("config"); configPath != "" {
		stopWatch, err := watchConfigFile(ctx, configPath)
		if err != nil {
			return fmt.Errorf("failed to watch config file: %w", err)
		}
		defer stopWatch()
	}

	shutdown, err := observability.Instrument(cfg.LogLevel.String(), observability.Format(cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.ErrorContext(ctx, "observability shutdown failed", "error", err)
		}
	}()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "validate an Anthropic request body from stdin and print the OpenAI-compatible request it converts to",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "upstream-model",
				Usage:    "upstream model name to substitute into the converted request",
				Required: true,
			},
		},
		Action: convertAction,
	}
}

func convertAction(ctx context.Context, cmd *cli.Command) error {
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	req, apiErr := validate.Request(body)
	if apiErr != nil {
		return fmt.Errorf("invalid request: %s", apiErr.Error())
	}

	openaiReq, err := transform.Request(req, cmd.String("upstream-model"))
	if err != nil {
		return fmt.Errorf("converting request: %w", err)
	}

	encoded, err := json.MarshalIndent(openaiReq, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding converted request: %w", err)
	}

	_, err = os.Stdout.Write(append(encoded, '\n'))
	return err
}
