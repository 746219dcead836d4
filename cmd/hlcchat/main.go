package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/apiclient"
	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/config"
)

type contextKey int

const (
	contextKeyConfig contextKey = iota
	contextKeyLogger
	contextKeyClient
)

func getConfig(ctx *cli.Context) *config.Config {
	return ctx.Context.Value(contextKeyConfig).(*config.Config)
}

func getLogger(ctx *cli.Context) zerolog.Logger {
	return ctx.Context.Value(contextKeyLogger).(zerolog.Logger)
}

func getClient(ctx *cli.Context) *apiclient.Client {
	return ctx.Context.Value(contextKeyClient).(*apiclient.Client)
}

func prepareApp(ctx *cli.Context) error {
	// Best effort: the token usually lives in .env during development.
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if ctx.Bool("verbose") {
		level = zerolog.TraceLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	var cfg *config.Config
	var err error
	if path := ctx.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := apiclient.NewClient(cfg.Server.BaseURL, cfg.Token(), log)
	newCtx := context.WithValue(ctx.Context, contextKeyConfig, cfg)
	newCtx = context.WithValue(newCtx, contextKeyLogger, log)
	newCtx = context.WithValue(newCtx, contextKeyClient, client)
	ctx.Context = newCtx
	return nil
}

func main() {
	app := &cli.App{
		Name:    "hlcchat",
		Usage:   "Chat client for the HLC church app backend",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file (embedded defaults when empty)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			openCommand,
			sendCommand,
			stubCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
