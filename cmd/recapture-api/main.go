// Package main provides the RecaptureDocs API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/recapturedocs/recapturedocs/cmd/recapture-api/middleware"
	"github.com/recapturedocs/recapturedocs/internal/config"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/orchestrator"
)

func main() {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("public_url", cfg.Server.PublicURL).
		Bool("devel", cfg.Devel.Enabled).
		Msg("Starting RecaptureDocs API")

	ctx := context.Background()
	rt, err := orchestrator.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build orchestrator")
		os.Exit(1)
	}

	appCfg := DefaultAppConfig()
	appCfg.RequestTimeout = cfg.Server.WriteTimeout
	appCfg.MaxUploadBytes = cfg.Splitter.MaxUploadBytes
	appCfg.Invitation = middleware.InvitationConfig{
		Required: cfg.Access.RequireInvitation,
		Code:     cfg.Access.InvitationCode,
	}
	appCfg.Devel = cfg.Devel.Enabled
	appCfg.PublicURL = cfg.PublicURLFor

	router := NewRouter(logger, appCfg, rt.Service)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	if err := rt.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to release resources")
	}

	logger.Info().Msg("Server stopped")
}
