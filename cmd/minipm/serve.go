package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/caesarsage/mini-pm/internal/api"
	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/config"
	"github.com/caesarsage/mini-pm/internal/logger"
	"github.com/caesarsage/mini-pm/internal/storage"
	"github.com/caesarsage/mini-pm/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx = logger.WithLogger(ctx, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	}()

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, logger.WithComponent(log, "storage"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("close storage", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sessions := auth.NewSessionManager(cfg.Auth.SessionTTL, logger.WithComponent(log, "auth"))

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(api.Options{
		Store:       store,
		Sessions:    sessions,
		GhostPolicy: cfg.GhostPolicy(),
		Limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		Logger:      logger.WithComponent(log, "api"),
		Registry:    reg,
		ServiceName: cfg.Telemetry.ServiceName,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Backend,
			"ghost_policy", cfg.GhostPolicy())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx, cfg.Auth.SweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
