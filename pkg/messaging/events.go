package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventExtractionRequested = "extraction.requested"
	EventExtractionCompleted = "extraction.completed"
	EventExtractionFailed    = "extraction.failed"
)

// Exchange and queue names
const (
	ExchangeExtractionEvents = "extraction.events"
	QueueExtractionWorker    = "extraction.worker"
)

// Event is the envelope carried on the wire
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ExtractionRequestedEvent asks a worker to process a stored document
type ExtractionRequestedEvent struct {
	JobID       string `json:"job_id"`
	DocumentRef string `json:"document_ref"`
	Label       string `json:"label"`
	Schema      string `json:"schema"`
	ScreenType  string `json:"screen_type,omitempty"`
	UseFallback bool   `json:"use_fallback"`
}

// ExtractionCompletedEvent is published after a job finishes
type ExtractionCompletedEvent struct {
	JobID        string            `json:"job_id"`
	Label        string            `json:"label"`
	Layout       string            `json:"layout,omitempty"`
	Coverage     float64           `json:"coverage"`
	FallbackUsed bool              `json:"fallback_used"`
	DurationMs   int64             `json:"duration_ms"`
	Fields       map[string]string `json:"fields"`
}

// ExtractionFailedEvent is published when a job cannot complete
type ExtractionFailedEvent struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}
