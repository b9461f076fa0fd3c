package events

import (
	"context"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/fieldscan/fieldscan-backend/pkg/messaging"
)

// ExtractionEventPublisher publishes extraction outcomes
type ExtractionEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewExtractionEventPublisher declares the extraction exchange on rmq
func NewExtractionEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*ExtractionEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeExtractionEvents, source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps an existing publisher, e.g. a test double
func NewWithPublisher(p messaging.EventPublisher, log *logger.Logger) *ExtractionEventPublisher {
	return &ExtractionEventPublisher{publisher: p, logger: log}
}

// PublishCompleted publishes an extraction.completed event
func (p *ExtractionEventPublisher) PublishCompleted(ctx context.Context, jobID string, cat domain.Category, report domain.Report, fields domain.Fields) {
	if p == nil {
		return
	}
	data := messaging.ExtractionCompletedEvent{
		JobID:        jobID,
		Label:        string(cat),
		Layout:       string(report.Layout),
		Coverage:     report.Coverage,
		FallbackUsed: report.FallbackUsed,
		DurationMs:   report.DurationMs,
		Fields:       fields.Map(),
	}
	if err := p.publisher.Publish(ctx, messaging.EventExtractionCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish extraction completed event")
	}
}

// PublishFailed publishes an extraction.failed event
func (p *ExtractionEventPublisher) PublishFailed(ctx context.Context, jobID, reason string) {
	if p == nil {
		return
	}
	data := messaging.ExtractionFailedEvent{JobID: jobID, Error: reason}
	if err := p.publisher.Publish(ctx, messaging.EventExtractionFailed, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish extraction failed event")
	}
}
