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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/events"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/handler"
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

const serviceName = "extractor-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Extractor Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var serviceOpts []service.Option
	var auditHandler *handler.AuditHandler
	health := map[string]func(context.Context) map[string]string{}

	// Audit trail is optional
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate audit schema")
		}
		auditRepo := repository.NewAuditRepository(db)
		serviceOpts = append(serviceOpts, service.WithAudit(auditRepo))
		auditHandler = handler.NewAuditHandler(auditRepo, log)
		health["database"] = db.Health
	}

	// Job outcome events are optional
	if cfg.RabbitMQ.Enabled {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err := events.NewExtractionEventPublisher(rmq, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		serviceOpts = append(serviceOpts, service.WithEvents(publisher))
		health["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }
	}

	m := metrics.New(serviceName)
	p, err := pipeline.Build(ctx, cfg, m, log, serviceOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build extraction pipeline")
	}
	defer p.Close()

	extractHandler := handler.NewHandler(p.Service, p.Reader, cfg.Extraction.UseFallbackDefault, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.BearerAuth(cfg.JWT.Secret, cfg.JWT.Issuer, log))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":               "healthy",
			"service":              serviceName,
			"default_use_fallback": cfg.Extraction.UseFallbackDefault,
			"fallback_provider":    cfg.Fallback.Provider,
			"fallback_enabled":     p.Orchestrator.HasFiller(),
			"min_coverage":         cfg.Extraction.MinCoverage,
			"fallback_usage":       p.Usage.Summary(),
		}
		for name, check := range health {
			body[name] = check(r.Context())
		}
		httputil.JSON(w, http.StatusOK, body)
	})

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", m.Handler())
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		extractHandler.Routes(r)
		if auditHandler != nil {
			auditHandler.Routes(r)
		}
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
