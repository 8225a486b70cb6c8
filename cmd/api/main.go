package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"livemenu/internal/api"
	"livemenu/internal/app"
	"livemenu/internal/config"
	"livemenu/internal/database"
	"livemenu/internal/logging"
	"livemenu/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	a, err := app.New(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init application")
		return err
	}
	defer (func() { _ = a.Close() })()

	if err := a.Menu.Load(ctx); err != nil {
		return fmt.Errorf("load menu: %w", err)
	}

	exportWorker := a.NewExportWorker()

	if _, err := a.InitTelegram(); err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		exportWorker.Start(gctx)
		return nil
	})

	if cfg.Database.Driver != "postgres" && cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		g.Go(func() error {
			backup.Start(gctx)
			return nil
		})
	}

	if cfg.Monitoring.PrometheusEnabled {
		g.Go(func() error {
			return startMetricsServer(gctx, cfg.Monitoring.PrometheusPort, &logger)
		})
	}

	if cfg.API.Enabled {
		if err := startServers(gctx, g, a, cfg, &logger); err != nil {
			stop()
			_ = g.Wait()
			return err
		}
	} else {
		logger.Warn().Msg("API is disabled in config; only the export worker is running")
	}

	logger.Info().Str("version", cfg.App.Version).Msg("menu service started")
	err = g.Wait()
	logger.Info().Msg("menu service stopped")
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func startServers(ctx context.Context, g *errgroup.Group, a *app.App, cfg *config.Config, logger *zerolog.Logger) error {
	auth := api.NewAuthenticator(cfg.API)

	if cfg.API.GRPC.Enabled {
		grpcServer, err := api.NewGRPCServer(&cfg.API, auth, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		g.Go(grpcServer.Serve)
		g.Go(func() error {
			grpcServer.MonitorHealth(ctx, a.Store, 15*time.Second)
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			grpcServer.Shutdown(shutdownCtx)
			return nil
		})
	}

	if cfg.API.HTTP.Enabled {
		httpServer := api.NewHTTPServer(&cfg.API, a.Menu, a.Exports, a.Store, auth, logger)
		g.Go(httpServer.Start)
		g.Go(func() error {
			<-ctx.Done()
			logger.Info().Msg("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info().Int("grpc_port", cfg.API.GRPC.Port).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) error {
	if port == 0 {
		port = 9090
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
		return err
	}
	return nil
}
