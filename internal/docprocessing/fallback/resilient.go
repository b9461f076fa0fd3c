package fallback

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/pkg/resilience"
)

// ResilientFiller retries transient failures and trips a breaker per provider
type ResilientFiller struct {
	next      Filler
	executor  *resilience.Executor
	operation string
	timeout   time.Duration
}

// NewResilientFiller wraps next. A zero timeout leaves the caller's deadline alone.
func NewResilientFiller(next Filler, executor *resilience.Executor, provider string, timeout time.Duration) *ResilientFiller {
	return &ResilientFiller{
		next:      next,
		executor:  executor,
		operation: "fallback." + provider,
		timeout:   timeout,
	}
}

func (f *ResilientFiller) Fill(ctx context.Context, req Request) (map[string]string, error) {
	var out map[string]string
	err := f.executor.Execute(ctx, f.operation, func(ctx context.Context) error {
		if f.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}
		vals, err := f.next.Fill(ctx, req)
		if err != nil {
			return err
		}
		out = vals
		return nil
	}, classify)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// classify retries throttling, server errors and timeouts. Malformed output
// and other client errors fail fast.
func classify(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{}
	case errors.Is(err, domain.ErrFallback):
		return resilience.ErrorClassification{RecordFailure: true}
	case errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return byStatus(oaiErr.StatusCode)
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func byStatus(code int) resilience.ErrorClassification {
	if code == http.StatusTooManyRequests || code >= 500 {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: false}
}
