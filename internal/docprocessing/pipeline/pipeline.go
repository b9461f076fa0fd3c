// Package pipeline assembles the extraction stack from configuration. The
// HTTP service, the worker and the batch CLI share it.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/metrics"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/service"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/storage"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/config"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

// Pipeline holds the assembled components
type Pipeline struct {
	Reader       textlines.Reader
	Cache        *storage.MemoryCache
	Jobs         *storage.JobStore
	Orchestrator *service.Orchestrator
	Gate         *service.RetryGate
	Service      *service.Service
	Usage        *fallback.UsageTracker
	Metrics      *metrics.Metrics
}

// Build wires reader, cache, dispatcher, filler, orchestrator, gate and
// service from cfg. serviceOpts are appended to the service options, e.g.
// audit and events.
func Build(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logger.Logger, serviceOpts ...service.Option) (*Pipeline, error) {
	forced := domain.Layout(strings.ToUpper(cfg.Extraction.ForceLayout))

	reader := textlines.NewAutoReader()
	cache := storage.NewMemoryCache(storage.CacheOptions{
		TTL:             cfg.Cache.TTL,
		MaxEntries:      cfg.Cache.MaxEntries,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})

	var dispatchOpts []processor.DispatcherOption
	if forced != "" {
		dispatchOpts = append(dispatchOpts, processor.WithForcedLayout(forced))
		log.Warn().Str("layout", string(forced)).Msg("screen layout forced for every request")
	}
	dispatcher := processor.NewDispatcher(processor.DefaultRegistry(), dispatchOpts...)

	usage := fallback.NewUsageTracker(cfg.Fallback.PriceInPer1K, cfg.Fallback.PriceOutPer1K)
	filler, err := fallback.New(ctx, cfg.Fallback, usage, log.WithComponent("fallback"))
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("fallback filler: %w", err)
	}
	if filler == nil {
		log.Info().Msg("no fallback provider configured, fallback pass disabled")
	}

	orchOpts := []service.OrchestratorOption{service.WithMetrics(m)}
	if filler != nil {
		orchOpts = append(orchOpts, service.WithFiller(filler))
	}
	orch := service.NewOrchestrator(reader, dispatcher, cache, service.Options{
		MinCoverage:       cfg.Extraction.MinCoverage,
		MaxFallbackFields: cfg.Extraction.MaxFallbackFields,
		StrictCategories:  cfg.Extraction.StrictCategories,
	}, log, orchOpts...)

	gate := service.NewRetryGate(orch, reader, cfg.Extraction.RetryThreshold, forced, log)
	jobs := storage.NewJobStore(cfg.Jobs.TTL)

	opts := append([]service.Option{
		service.WithServiceMetrics(m),
		service.WithDebug(cfg.Extraction.Debug),
	}, serviceOpts...)
	svc := service.NewService(gate, jobs, log, opts...)

	return &Pipeline{
		Reader:       reader,
		Cache:        cache,
		Jobs:         jobs,
		Orchestrator: orch,
		Gate:         gate,
		Service:      svc,
		Usage:        usage,
		Metrics:      m,
	}, nil
}

// Close stops the background cleanup loops
func (p *Pipeline) Close() {
	p.Cache.Close()
	p.Jobs.Close()
}
