package consumers

import (
	"context"
	"fmt"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/service"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/fieldscan/fieldscan-backend/pkg/messaging"
)

// JobRunner runs one extraction job to completion and announces its outcome
type JobRunner interface {
	RunJob(ctx context.Context, jobID string, in service.Input) (domain.Outcome, error)
}

// ExtractionRequestConsumer consumes extraction.requested events
type ExtractionRequestConsumer struct {
	consumer *messaging.Consumer
	runner   JobRunner
	failures service.EventNotifier
	reader   textlines.Reader
	logger   *logger.Logger
}

// NewExtractionRequestConsumer binds the worker queue to extraction.requested
func NewExtractionRequestConsumer(rmq *messaging.RabbitMQ, runner JobRunner, failures service.EventNotifier, reader textlines.Reader, log *logger.Logger) (*ExtractionRequestConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, messaging.ExchangeExtractionEvents, messaging.QueueExtractionWorker,
		[]string{messaging.EventExtractionRequested}, log)
	if err != nil {
		return nil, err
	}

	c := &ExtractionRequestConsumer{
		consumer: consumer,
		runner:   runner,
		failures: failures,
		reader:   reader,
		logger:   log.WithComponent("request_consumer"),
	}
	consumer.RegisterHandler(messaging.EventExtractionRequested, c.HandleRequested)

	return c, nil
}

// Start starts consuming messages
func (c *ExtractionRequestConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandleRequested runs the requested extraction. Undecodable and invalid
// requests are reported as failed jobs and acknowledged.
func (c *ExtractionRequestConsumer) HandleRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.ExtractionRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.Warn().Err(err).Str("event_id", event.ID).Msg("dropping undecodable extraction request")
		if c.failures != nil {
			c.failures.PublishFailed(ctx, data.JobID, fmt.Sprintf("malformed request: %v", err))
		}
		return nil
	}

	log := c.logger.WithJobID(data.JobID).WithCorrelationID(event.CorrelationID)
	log.Info().
		Str("document", data.DocumentRef).
		Str("label", data.Label).
		Msg("received extraction request")

	in, err := c.input(ctx, data)
	if err != nil {
		log.Warn().Err(err).Msg("rejecting extraction request")
		if c.failures != nil {
			c.failures.PublishFailed(ctx, data.JobID, err.Error())
		}
		return nil
	}

	if _, err := c.runner.RunJob(ctx, data.JobID, in); err != nil {
		log.Warn().Err(err).Msg("extraction job failed")
	}
	return nil
}

func (c *ExtractionRequestConsumer) input(ctx context.Context, data messaging.ExtractionRequestedEvent) (service.Input, error) {
	if data.JobID == "" {
		return service.Input{}, fmt.Errorf("missing job_id")
	}
	if data.DocumentRef == "" {
		return service.Input{}, fmt.Errorf("missing document_ref")
	}

	cat := domain.Category(data.Label)
	if cat == "" {
		var lines []string
		if c.reader != nil {
			lines, _ = c.reader.Lines(ctx, data.DocumentRef)
		}
		cat = processor.InferCategory(data.DocumentRef, lines)
	}
	if !cat.Known() {
		return service.Input{}, fmt.Errorf("unsupported label %q", data.Label)
	}

	raw := data.Schema
	if raw == "" {
		raw = schema.AllSentinel
	}
	s, err := schema.Resolve(cat, raw)
	if err != nil {
		return service.Input{}, err
	}

	in := service.Input{
		Path:        data.DocumentRef,
		Category:    cat,
		Schema:      s,
		UseFallback: data.UseFallback,
	}
	if cat == domain.CategoryScreen {
		in.ScreenType = domain.ScreenType(data.ScreenType)
		if in.ScreenType == "" {
			in.ScreenType = processor.InferScreenType(data.DocumentRef)
		}
	}
	return in, nil
}
