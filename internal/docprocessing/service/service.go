package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/metrics"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/storage"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

// AuditWriter records finished extractions
type AuditWriter interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
}

// EventNotifier announces job outcomes
type EventNotifier interface {
	PublishCompleted(ctx context.Context, jobID string, cat domain.Category, report domain.Report, fields domain.Fields)
	PublishFailed(ctx context.Context, jobID, reason string)
}

// Service is the front door used by the HTTP handler and the worker:
// gated extraction, async jobs, audit and events.
type Service struct {
	gate    *RetryGate
	jobs    *storage.JobStore
	audit   AuditWriter
	events  EventNotifier
	metrics *metrics.Metrics
	debug   bool
	log     *logger.Logger
}

// Option configures a Service
type Option func(*Service)

// WithAudit enables the audit trail
func WithAudit(a AuditWriter) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// WithEvents enables job outcome events
func WithEvents(n EventNotifier) Option {
	return func(s *Service) {
		s.events = n
	}
}

func WithServiceMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDebug attaches diagnostics to every outcome
func WithDebug(debug bool) Option {
	return func(s *Service) {
		s.debug = debug
	}
}

// NewService creates a new document extraction service
func NewService(gate *RetryGate, jobs *storage.JobStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		gate: gate,
		jobs: jobs,
		log:  log.WithComponent("extraction_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Debug reports whether outcomes carry diagnostics
func (s *Service) Debug() bool {
	return s.debug
}

// Extract runs the gated pipeline synchronously
func (s *Service) Extract(ctx context.Context, in Input) (domain.Outcome, domain.Report) {
	return s.extract(ctx, "", in)
}

func (s *Service) extract(ctx context.Context, jobID string, in Input) (domain.Outcome, domain.Report) {
	ext := s.gate.Extract(ctx, in)

	out := domain.Outcome{Fields: ext.Fields}
	if s.debug && in.Category == domain.CategoryScreen {
		diag := ext.Diagnostics
		out.Diagnostics = &diag
	}

	s.log.Info().
		Str("job_id", jobID).
		Str("category", string(in.Category)).
		Str("layout", string(ext.Report.Layout)).
		Float64("coverage", ext.Report.Coverage).
		Bool("cache_hit", ext.Report.CacheHit).
		Bool("fallback_used", ext.Report.FallbackUsed).
		Int64("duration_ms", ext.Report.DurationMs).
		Msg("document extraction completed")

	if s.audit != nil {
		entry := auditEntry(jobID, in, ext)
		go s.writeAudit(context.WithoutCancel(ctx), entry)
	}
	return out, ext.Report
}

// StartJob registers an asynchronous extraction and returns it in pending
// state. done runs once the job has finished, e.g. to remove an upload.
func (s *Service) StartJob(ctx context.Context, in Input, done func()) domain.ExtractionJob {
	job := s.jobs.Create(in.Category)
	go s.runJob(context.WithoutCancel(ctx), job.JobID, in, done)
	return job
}

// RunJob executes an extraction for an externally assigned job ID, as the
// worker does for requested events. It blocks until the job finishes.
func (s *Service) RunJob(ctx context.Context, jobID string, in Input) (domain.Outcome, error) {
	out, report := s.extract(ctx, jobID, in)
	s.notify(ctx, jobID, in.Category, report, out.Fields)
	if report.Error != "" {
		return out, fmt.Errorf("job %s: %s", jobID, report.Error)
	}
	return out, nil
}

func (s *Service) runJob(ctx context.Context, jobID string, in Input, done func()) {
	log := s.log.WithJobID(jobID)
	s.metrics.JobStarted()
	defer s.metrics.JobFinished()
	if done != nil {
		defer done()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("extraction job panicked")
			s.finishJob(ctx, jobID, nil, domain.Report{Error: fmt.Sprintf("panic: %v", r)}, in.Category)
		}
	}()

	s.jobs.Update(jobID, func(j *domain.ExtractionJob) {
		j.Status = domain.StatusProcessing
	})

	out, report := s.extract(ctx, jobID, in)
	s.finishJob(ctx, jobID, &out, report, in.Category)
}

func (s *Service) finishJob(ctx context.Context, jobID string, out *domain.Outcome, report domain.Report, cat domain.Category) {
	s.jobs.Update(jobID, func(j *domain.ExtractionJob) {
		j.Outcome = out
		if report.Error != "" {
			j.Status = domain.StatusFailed
			j.Error = report.Error
			return
		}
		j.Status = domain.StatusCompleted
	})

	var fields domain.Fields
	if out != nil {
		fields = out.Fields
	}
	s.notify(ctx, jobID, cat, report, fields)
}

func (s *Service) notify(ctx context.Context, jobID string, cat domain.Category, report domain.Report, fields domain.Fields) {
	if s.events == nil {
		return
	}
	if report.Error != "" {
		s.events.PublishFailed(ctx, jobID, report.Error)
		return
	}
	s.events.PublishCompleted(ctx, jobID, cat, report, fields)
}

// GetJob retrieves an extraction job by ID
func (s *Service) GetJob(jobID string) (domain.ExtractionJob, bool) {
	return s.jobs.Get(jobID)
}

func (s *Service) writeAudit(ctx context.Context, entry domain.AuditEntry) {
	if err := s.audit.Create(ctx, &entry); err != nil {
		s.log.Warn().Err(err).Str("job_id", entry.JobID).Msg("failed to write extraction audit entry")
	}
}

func auditEntry(jobID string, in Input, ext Extraction) domain.AuditEntry {
	before, final := ext.Report.CoverageBefore, ext.Report.Coverage
	if ext.Diagnostics.Layout != "" {
		before, final = ext.Diagnostics.CoverageBefore, ext.Diagnostics.CoverageFinal
	}
	return domain.AuditEntry{
		JobID:          jobID,
		Label:          string(in.Category),
		Layout:         string(ext.Report.Layout),
		Fingerprint:    ext.Report.Fingerprint,
		RequestedKeys:  strings.Join(in.Schema.Keys(), "|"),
		CoverageBefore: before,
		Coverage:       final,
		FallbackUsed:   ext.Report.FallbackUsed,
		CacheHit:       ext.Report.CacheHit,
		DurationMs:     ext.Report.DurationMs,
		Error:          ext.Report.Error,
	}
}
