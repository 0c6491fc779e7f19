package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medgrid/dispatch-api/internal/config"
	"github.com/medgrid/dispatch-api/internal/distance"
	"github.com/medgrid/dispatch-api/internal/handler"
	emergencyHandler "github.com/medgrid/dispatch-api/internal/handler/emergency"
	hospitalHandler "github.com/medgrid/dispatch-api/internal/handler/hospital"
	streamHandler "github.com/medgrid/dispatch-api/internal/handler/stream"
	"github.com/medgrid/dispatch-api/internal/middleware"
	"github.com/medgrid/dispatch-api/internal/repository/postgres"
	"github.com/medgrid/dispatch-api/internal/router"
	dispatchService "github.com/medgrid/dispatch-api/internal/service/dispatch"
	eventService "github.com/medgrid/dispatch-api/internal/service/event"
	hospitalService "github.com/medgrid/dispatch-api/internal/service/hospital"
	"github.com/medgrid/dispatch-api/pkg/logger"
	redisBroker "github.com/medgrid/dispatch-api/pkg/messaging/redis"
	"github.com/medgrid/dispatch-api/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisBroker.NewBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	m := metrics.New(cfg.Server.MetricsNamespace)
	m.MustRegister(prometheus.DefaultRegisterer)

	hospitalRepo := postgres.NewHospitalRepository(db)
	emergencyRepo := postgres.NewEmergencyRepository(db)
	txRunner := postgres.NewTxRunner(db)

	distanceClient := distance.NewClient(distance.Config{
		APIKey:   cfg.Distance.APIKey,
		BaseURL:  cfg.Distance.BaseURL,
		Timeout:  cfg.Distance.Timeout,
		CacheTTL: cfg.Distance.CacheTTL,
	}, log)

	eventSvc := eventService.NewService(broker, hospitalRepo, emergencyRepo, m, log)
	dispatchSvc := dispatchService.NewService(
		txRunner, hospitalRepo, emergencyRepo,
		distanceClient, eventSvc, m, log,
		cfg.Dispatch.SearchRadiusKm,
	)
	hospitalSvc := hospitalService.NewService(hospitalRepo, eventSvc, log)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	r := router.New(
		handler.NewHealth(db),
		emergencyHandler.NewHandler(dispatchSvc),
		hospitalHandler.NewHandler(hospitalSvc),
		streamHandler.NewHandler(broker, log),
		log,
		router.Config{
			RateLimitRPS:   cfg.Server.RateLimitPerSec,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			CORS:           corsConfig,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r.Engine(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero: the SSE stream holds its connection open.
		WriteTimeout: 0,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting dispatch API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
