package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dancebattle/internal/core/services"
	httphandlers "dancebattle/internal/handlers/http"
	"dancebattle/internal/infrastructure/monitoring"
	repositories "dancebattle/internal/infrastructure/repositories"
	"dancebattle/internal/infrastructure/retention"
	signalinfra "dancebattle/internal/infrastructure/signal"
	"dancebattle/pkg/config"
	"dancebattle/pkg/logger"
	"dancebattle/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const healthCheckTimeout = 2 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and WebSocket relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		SampleRate:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		return err
	}
	defer repoFactory.Close()

	roomRepo := repoFactory.CreateRoomRepository()
	eventBus := repoFactory.CreateEventBus()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewPrometheusCollector(registry)

	roomService := services.NewRoomService(roomRepo, eventBus, metrics, log, services.RoomServiceConfig{
		CodeAttempts: cfg.Rooms.CodeAttempts,
	})
	signalingService := services.NewSignalingService(roomRepo, eventBus, metrics, log)
	tokenService := services.NewPlayerTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	relay := signalinfra.NewPoseRelay(roomService, signalingService, tokenService, eventBus, metrics, cfg, log)

	health := monitoring.NewHealthChecker()
	health.AddRepositoryCheck(roomRepo, healthCheckTimeout)
	if repoFactory.UsingRedis() {
		health.AddCheck("redis", repoFactory.HealthCheck, healthCheckTimeout)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandlers.NewRouter(httphandlers.RouterDeps{
		Config:    cfg,
		Rooms:     roomService,
		Signaling: signalingService,
		Tokens:    tokenService,
		Relay:     relay,
		Health:    health,
		Metrics:   metrics,
		Gatherer:  registry,
		Logger:    log,
	})

	go func() {
		if err := eventBus.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorw("event bus stopped", "error", err)
		}
	}()

	var locker retention.Locker
	if lock := repoFactory.CreateLock("janitor", cfg.Rooms.JanitorInterval); lock != nil {
		locker = lock
	}
	janitor := retention.NewJanitor(roomRepo, locker, metrics, retention.Config{
		Interval:   cfg.Rooms.JanitorInterval,
		Retention:  cfg.Rooms.Retention,
		WaitingTTL: cfg.Rooms.WaitingTTL,
		PlayingTTL: cfg.Rooms.PlayingTTL,
	}, log)
	go janitor.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting dancebattle server", "address", cfg.Server.Address, "redis", repoFactory.UsingRedis())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		relay.Close()
		return err
	case <-ctx.Done():
		log.Info("shutting down dancebattle server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	relay.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("failed to flush traces", "error", err)
	}

	log.Info("dancebattle server stopped")
	return nil
}
