package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/photofeed/internal/app"
	"github.com/florianilch/photofeed/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand().Run(ctx, args)
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "photofeed",
		Usage: "Browse and like photos from the command line",
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
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "export logs via OpenTelemetry (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigTelemetryExporter),
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "photo API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "where the access token is kept (file|env|keyring)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "oauth--client-id",
				Usage: "OAuth client id (access key)",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			feedCommand(),
			likeCommand(true),
			likeCommand(false),
			profileCommand(),
			logoutCommand(),
			serveCommand(),
		},
	}
}

// session holds what every action needs after configuration was loaded.
type session struct {
	cfg      *app.Config
	app      *app.App
	shutdown observability.ShutdownFunc
}

// close flushes exported log records.
func (s *session) close(ctx context.Context) {
	if err := s.shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "failed to flush telemetry:", err)
	}
}

// withSession loads configuration, sets up logging and builds the App before
// running action.
func withSession(action func(context.Context, *cli.Command, *session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, observability.Options{
			Level:    cfg.LogLevel,
			Format:   string(cfg.LogFormat),
			Exporter: cfg.Telemetry.Exporter,
			Endpoint: cfg.Telemetry.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}

		application, err := app.New(cfg)
		if err != nil {
			_ = shutdown(context.WithoutCancel(ctx))
			return fmt.Errorf("failed to create app: %w", err)
		}

		s := &session{cfg: cfg, app: application, shutdown: shutdown}
		defer s.close(context.WithoutCancel(ctx))

		return action(ctx, cmd, s)
	}
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stdin(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the loopback server for the OAuth redirect and a local UI",
		Flags: []cli.Flag{
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
				Name:  "oauth--redirect-uri",
				Usage: "redirect URI registered with the OAuth client",
			},
		},
		Action: withSession(serveAction),
	}
}

func serveAction(ctx context.Context, _ *cli.Command, s *session) error {
	slog.InfoContext(ctx, "starting")

	if err := s.app.Start(ctx); err != nil {
		if errors.Is(err, app.ErrOAuthNotConfigured) {
			return fmt.Errorf("serve needs an OAuth client: %w", err)
		}
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
