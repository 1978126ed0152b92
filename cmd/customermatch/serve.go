package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/geo"
	"github.com/JonMunkholm/customermatch/internal/metrics"
	"github.com/JonMunkholm/customermatch/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload UI and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := a.logger

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"zip_backend", cfg.Lookup.Backend,
		"max_concurrent_runs", cfg.Server.MaxConcurrentRuns,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	translations, err := loadTranslations(cfg.Normalize.TranslationsFile)
	if err != nil {
		return err
	}

	source, err := geo.Open(ctx, cfg.Lookup)
	if err != nil {
		return fmt.Errorf("open zip source: %w", err)
	}
	var zipSource core.ZipSource
	if source != nil {
		defer source.Close()
		zipSource = source
		logger.Info("zip source ready", "backend", cfg.Lookup.Backend)
	}

	recorder, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	server := web.NewServer(web.Deps{
		Config:       cfg,
		Source:       zipSource,
		Translations: translations,
		Recorder:     recorder,
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("runs did not complete in time", "error", err)
			return nil
		}
		return err
	}
	logger.Info("server stopped")
	return nil
}
