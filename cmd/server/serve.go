package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	adminhandler "certhub/internal/admin/handler"
	certhandler "certhub/internal/certificate/handler"
	"certhub/internal/platform/httpserver"
	httptransport "certhub/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and retention sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.logger

	if err := a.startDatabase(); err != nil {
		log.Warn().Err(err).Msg("database not ready, serving while reconnecting")
	}

	certs := certhandler.New(a.service, a.cfg.Server.UploadDir, a.cfg.Server.MaxUploadBytes, log)
	admin := adminhandler.New(a.sweeper, a.service, a.manager, adminhandler.Config{
		UploadDir: a.cfg.Server.UploadDir,
		Retention: a.cfg.Retention,
		DBAddress: a.dialect.Address(a.cfg.Database),
	}, log)
	if a.cfg.Server.AdminSecret == "" {
		log.Warn().Msg("ADMIN_SECRET not set, admin endpoints will refuse every request")
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Public:         []httptransport.Registrar{certs},
		Admin:          admin,
		Database:       a.manager,
		Gatherer:       a.registry,
		AdminSecret:    a.cfg.Server.AdminSecret,
		DebugEndpoints: a.cfg.Server.DebugEndpoints,
		Logger:         log,
	})
	srv := httpserver.New(a.cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", a.cfg.Server.Addr).Msg("starting certhub")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
