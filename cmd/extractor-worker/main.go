package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/consumers"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/events"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/metrics"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/pipeline"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/repository"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/service"
	"github.com/fieldscan/fieldscan-backend/pkg/config"
	"github.com/fieldscan/fieldscan-backend/pkg/database"
	"github.com/fieldscan/fieldscan-backend/pkg/httputil"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/fieldscan/fieldscan-backend/pkg/messaging"
)

const serviceName = "extractor-worker"

func main() {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Extractor Worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker exists to consume the queue, so the broker is required
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewExtractionEventPublisher(rmq, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	serviceOpts := []service.Option{service.WithEvents(publisher)}

	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate audit schema")
		}
		serviceOpts = append(serviceOpts, service.WithAudit(repository.NewAuditRepository(db)))
	}

	m := metrics.New(serviceName)
	p, err := pipeline.Build(ctx, cfg, m, log, serviceOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build extraction pipeline")
	}
	defer p.Close()

	consumer, err := consumers.NewExtractionRequestConsumer(rmq, p.Service, publisher, p.Reader, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create extraction request consumer")
	}
	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start extraction request consumer")
	}

	// Health and metrics only
	r := chi.NewRouter()
	r.Use(httputil.Recoverer(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":         "healthy",
			"service":        serviceName,
			"rabbitmq":       rmq.Health(),
			"fallback_usage": p.Usage.Summary(),
		})
	})
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", m.Handler())
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("health server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")

	// Cancel context to stop the consumer
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
