package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/qaboard/dashboard/internal/charts"
	"github.com/qaboard/dashboard/internal/config"
	"github.com/qaboard/dashboard/internal/notify"
	"github.com/qaboard/dashboard/internal/observability"
	"github.com/qaboard/dashboard/internal/pipeline"
	"github.com/qaboard/dashboard/internal/qaapi"
	"github.com/qaboard/dashboard/internal/server"
	"github.com/qaboard/dashboard/internal/view"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "qa-dashboard",
		Short:        "Live QA dashboard",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file path (optional)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn("config", "warning", w)
	}

	api, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dash := pipeline.New(
		api,
		view.NewDocument(view.DefaultLayout()),
		charts.NewGenerator(),
		notify.NewSink(logger, cfg.Notify.TTL),
		logger,
		observability.NewRecorder(reg),
		pipeline.Options{
			Interval:        cfg.Refresh.Interval,
			FollowUpDelay:   cfg.Refresh.FollowUpDelay,
			FetchTimeout:    cfg.Backend.Timeout,
			ExecutionsLimit: cfg.Backend.ExecutionsLimit,
			PeriodicSources: pipeline.ParseSources(cfg.Refresh.PeriodicSources),
			RunDefaults:     qaapi.RunRequest{Kind: cfg.RunTests.Kind, Environment: cfg.RunTests.Environment},
		},
	)
	if err := dash.Start(); err != nil {
		return fmt.Errorf("start dashboard: %w", err)
	}
	defer dash.Teardown()

	srv := server.NewServer(dash, logger, reg)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())

		dash.Teardown()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("starting QA dashboard", "addr", cfg.Server.Addr, "backend", cfg.Backend.URL, "mock", cfg.Backend.UseMock)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newClient(cfg *config.Config, logger *slog.Logger) (qaapi.Client, error) {
	if cfg.Backend.UseMock {
		logger.Info("using mock QA backend client")
		return qaapi.NewMockClient(), nil
	}

	api, err := qaapi.NewRealClient(cfg.Backend.URL,
		qaapi.WithTimeout(cfg.Backend.Timeout),
		qaapi.WithEndpoints(cfg.Backend.Endpoints),
	)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	logger.Info("using QA backend", "url", cfg.Backend.URL)
	return api, nil
}
