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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onlythejoe/void-engine/internal/archive"
	"github.com/onlythejoe/void-engine/internal/config"
	"github.com/onlythejoe/void-engine/internal/engine"
	"github.com/onlythejoe/void-engine/internal/httpapi"
	"github.com/onlythejoe/void-engine/internal/logging"
	"github.com/onlythejoe/void-engine/internal/metrics"
	"github.com/onlythejoe/void-engine/internal/persist"
	"github.com/onlythejoe/void-engine/internal/server"
	"github.com/onlythejoe/void-engine/internal/telemetry"
)

const (
	serviceName         = "void-engine"
	httpShutdownTimeout = 5 * time.Second
)

// #region command
func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memory field service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv(config.PathEnv)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.PathEnv+")")
	return cmd
}

// #endregion command

// #region serve
func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	// arch stays a nil interface unless a store opens
	var arch engine.Archive
	if cfg.ArchivePath != "" {
		store, err := archive.NewStore(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer store.Close()
		arch = store
		logger.Info("archive opened", "path", cfg.ArchivePath)
	}

	field, err := persist.Load(cfg.StatePath, cfg.Capacity)
	if err != nil {
		return fmt.Errorf("load memory field: %w", err)
	}
	if field.Cap() != cfg.Capacity {
		logger.Warn("persisted capacity differs from configuration, keeping persisted",
			"persisted", field.Cap(), "configured", cfg.Capacity)
	}
	logger.Info("memory field loaded", "path", cfg.StatePath, "snapshots", field.Len(), "capacity", field.Cap())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := engine.New(field, persist.NewWriter(cfg.StatePath), engine.Options{
		FlushEvery: cfg.FlushEvery,
		Feedback:   cfg.Feedback,
		Archive:    arch,
		Metrics:    metrics.New(reg),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(cfg.GRPCAddr, eng, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error { return eng.Run(gctx, cfg.FlushInterval) })
	if cfg.HTTPAddr != "" {
		serveHTTP(gctx, g, cfg.HTTPAddr, httpapi.NewRouter(eng, reg, logger), logger)
	}

	err = g.Wait()
	logger.Info("memory field service stopped", "ticks", eng.Ticks())
	return err
}

func serveHTTP(ctx context.Context, g *errgroup.Group, addr string, handler http.Handler, logger *slog.Logger) {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("http listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
}

// #endregion serve
