package consumers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/service"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/fieldscan/fieldscan-backend/pkg/messaging"
)

type fakeRunner struct {
	mu    sync.Mutex
	jobs  []string
	input []service.Input
	err   error
}

func (f *fakeRunner) RunJob(ctx context.Context, jobID string, in service.Input) (domain.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, jobID)
	f.input = append(f.input, in)
	return domain.Outcome{}, f.err
}

type fakeNotifier struct {
	failed map[string]string
}

func (f *fakeNotifier) PublishCompleted(context.Context, string, domain.Category, domain.Report, domain.Fields) {
}

func (f *fakeNotifier) PublishFailed(ctx context.Context, jobID, reason string) {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[jobID] = reason
}

func newTestConsumer(runner *fakeRunner, notifier *fakeNotifier) *ExtractionRequestConsumer {
	return &ExtractionRequestConsumer{
		runner:   runner,
		failures: notifier,
		reader: textlines.ReaderFunc(func(ctx context.Context, path string) ([]string, error) {
			return []string{"Detalhamento de saldos por parcelas"}, nil
		}),
		logger: logger.Nop(),
	}
}

func requested(t *testing.T, data messaging.ExtractionRequestedEvent) *messaging.Event {
	t.Helper()
	ev, err := messaging.NewEvent(messaging.EventExtractionRequested, "test", "corr-1", data)
	require.NoError(t, err)
	return ev
}

func TestHandleRequested_RunsJob(t *testing.T) {
	runner := &fakeRunner{}
	notifier := &fakeNotifier{}
	c := newTestConsumer(runner, notifier)

	err := c.HandleRequested(context.Background(), requested(t, messaging.ExtractionRequestedEvent{
		JobID:       "job-1",
		DocumentRef: "/data/consulta_cobranca_2.pdf",
		Schema:      `{"cidade": "", "valor_parcela": ""}`,
		UseFallback: true,
	}))
	require.NoError(t, err)

	require.Equal(t, []string{"job-1"}, runner.jobs)
	in := runner.input[0]
	assert.Equal(t, domain.CategoryScreen, in.Category)
	assert.Equal(t, []string{"cidade", "valor_parcela"}, in.Schema.Keys())
	assert.Equal(t, domain.ScreenBillingLookup, in.ScreenType)
	assert.True(t, in.UseFallback)
	assert.Empty(t, notifier.failed)
}

func TestHandleRequested_DefaultsToSuperset(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConsumer(runner, &fakeNotifier{})

	require.NoError(t, c.HandleRequested(context.Background(), requested(t, messaging.ExtractionRequestedEvent{
		JobID:       "job-2",
		DocumentRef: "/data/carteira_oab.pdf",
	})))

	in := runner.input[0]
	assert.Equal(t, domain.CategoryLicense, in.Category)
	assert.Len(t, in.Schema, 8)
	assert.Empty(t, in.ScreenType)
}

func TestHandleRequested_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		data messaging.ExtractionRequestedEvent
		want string
	}{
		{"missing document", messaging.ExtractionRequestedEvent{JobID: "j"}, "document_ref"},
		{"unknown label", messaging.ExtractionRequestedEvent{JobID: "j", DocumentRef: "/a.pdf", Label: "rg"}, "unsupported label"},
		{"bad schema", messaging.ExtractionRequestedEvent{JobID: "j", DocumentRef: "/a.pdf", Label: "carteira_oab", Schema: `{"cpf": ""}`}, "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			notifier := &fakeNotifier{}
			c := newTestConsumer(runner, notifier)

			err := c.HandleRequested(context.Background(), requested(t, tt.data))

			assert.NoError(t, err, "invalid requests are acknowledged")
			assert.Empty(t, runner.jobs)
			assert.Contains(t, notifier.failed["j"], tt.want)
		})
	}
}

func TestHandleRequested_JobFailureIsAcknowledged(t *testing.T) {
	runner := &fakeRunner{err: errors.New("job job-3: document missing")}
	c := newTestConsumer(runner, &fakeNotifier{})

	err := c.HandleRequested(context.Background(), requested(t, messaging.ExtractionRequestedEvent{
		JobID:       "job-3",
		DocumentRef: "/data/oab.pdf",
		Label:       "carteira_oab",
		Schema:      "ALL",
	}))

	assert.NoError(t, err)
	assert.Len(t, runner.jobs, 1)
}

func TestHandleRequested_MalformedDataIsDropped(t *testing.T) {
	runner := &fakeRunner{}
	notifier := &fakeNotifier{}
	c := newTestConsumer(runner, notifier)

	err := c.HandleRequested(context.Background(), &messaging.Event{ID: "ev-1", Data: []byte(`"not an object"`)})

	require.NoError(t, err, "returning nil acks the message instead of requeueing it")
	assert.Empty(t, runner.jobs)
	require.Len(t, notifier.failed, 1)
	assert.Contains(t, notifier.failed[""], "malformed request")
}
