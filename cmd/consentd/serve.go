package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/consentd/internal/app"
	"github.com/dropDatabas3/consentd/internal/http/server"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP (pipeline, gestión, /healthz y /metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, c)
		},
	}
}

func runServe(ctx context.Context, c *cli) error {
	log := logger.L().With(logger.Component("serve"))

	container, err := app.Build(ctx, c.cfg, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Warn("cleanup failed", logger.Err(err))
		}
	}()

	srv := server.New(server.Config{
		Addr:            c.cfg.Server.Addr,
		ReadTimeout:     c.cfg.Server.ReadTimeout,
		WriteTimeout:    c.cfg.Server.WriteTimeout,
		ShutdownTimeout: c.cfg.Server.ShutdownTimeout,
	}, container.Handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested")
		return nil
	})

	log.Info("consentd started",
		logger.String("addr", c.cfg.Server.Addr),
		logger.String("storage", c.cfg.Storage.Driver),
		logger.String("cache", c.cfg.Cache.Kind),
	)
	return g.Wait()
}
