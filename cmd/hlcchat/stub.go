package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/stubserver"
)

var stubCommand = &cli.Command{
	Name:   "stub",
	Usage:  "Run the in-memory stub backend for local development",
	Before: prepareApp,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Listen address",
			Value: ":8750",
		},
	},
	Action: runStub,
}

func runStub(ctx *cli.Context) error {
	log := getLogger(ctx)
	srv := &http.Server{
		Addr:    ctx.String("listen"),
		Handler: stubserver.New(log).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", srv.Addr).Msg("Stub backend listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down stub backend")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
