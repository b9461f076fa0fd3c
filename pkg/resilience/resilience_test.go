package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}
}

func TestExecute_RetriesRetryableFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	attempts := 0
	errTemp := errors.New("rate limited")
	err := exec.Execute(context.Background(), "fallback.openai", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecute_StopsOnPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	attempts := 0
	errBad := errors.New("bad request")
	err := exec.Execute(context.Background(), "fallback.openai", func(context.Context) error {
		attempts++
		return errBad
	}, nil)

	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, 1, attempts)
}

func TestExecute_OpensCircuit(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	exec := NewExecutor(cfg, nil)

	var opened []string
	exec.OnStateChange(func(op string, open bool) {
		if open {
			opened = append(opened, op)
		}
	})

	failing := func(context.Context) error { return errors.New("upstream down") }
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "fallback.gemini", failing, nil)
	}

	calls := 0
	err := exec.Execute(context.Background(), "fallback.gemini", func(context.Context) error {
		calls++
		return nil
	}, nil)

	assert.True(t, IsCircuitOpen(err))
	assert.Zero(t, calls)
	assert.Equal(t, []string{"fallback.gemini"}, opened)
}

func TestExecute_HonoursCancelledContext(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestNormalize_FillsDefaults(t *testing.T) {
	cfg := Config{}.normalize()
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryInitialBackoff)
	assert.Equal(t, 400*time.Millisecond, cfg.RetryMaxBackoff)
	assert.Equal(t, uint32(10), cfg.BreakerMinRequests)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
}
