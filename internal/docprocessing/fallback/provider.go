package fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldscan/fieldscan-backend/pkg/config"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/fieldscan/fieldscan-backend/pkg/resilience"
)

// New builds the configured filler behind the resilience executor. It
// returns nil when no provider is configured.
func New(ctx context.Context, cfg config.FallbackConfig, usage *UsageTracker, log *logger.Logger) (Filler, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	var next Filler
	switch provider {
	case "openai":
		next = NewOpenAIFiller(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, usage)
	case "gemini":
		g, err := NewGeminiFiller(ctx, cfg.APIKey, cfg.Model, usage)
		if err != nil {
			return nil, err
		}
		next = g
	default:
		return nil, fmt.Errorf("unsupported fallback provider %q", cfg.Provider)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerMinRequests:  cfg.BreakerMinRequests,
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
	}, log)
	executor.OnStateChange(func(op string, open bool) {
		log.Warn().Str("operation", op).Bool("open", open).Msg("fallback circuit breaker state changed")
	})

	log.Info().Str("provider", provider).Str("model", cfg.Model).Msg("fallback filler configured")
	return NewResilientFiller(next, executor, provider, cfg.Timeout), nil
}
