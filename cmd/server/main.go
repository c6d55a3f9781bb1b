package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arnavshah/workforce-api/internal/app"
	"github.com/arnavshah/workforce-api/internal/config"
	"github.com/arnavshah/workforce-api/internal/logger"
)

const shutdownGrace = 10 * time.Second

func main() {
	// Try root and parent directories for flexibility
	cfg, err := config.Load(".env", "../.env", "../../.env")
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	lg := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("could not start")
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info().Str("port", cfg.HTTP.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("could not run server")
		}
	}()

	<-ctx.Done()
	lg.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
	}
}
