package suggest

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/circuitbreaker"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/infrastructure/retry"
	"github.com/jonesrussell/seo-pinger/internal/domain"
)

// Guard defaults.
const (
	DefaultFailureThreshold = 3
	DefaultOpenTimeout      = 60 * time.Second
	DefaultMaxAttempts      = 2
	DefaultInitialDelay     = 500 * time.Millisecond
)

// GuardConfig tunes the circuit breaker and retry around a provider.
type GuardConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	MaxAttempts      int
	InitialDelay     time.Duration
}

// GuardedSuggester retries transient provider errors and stops calling a
// provider that keeps failing.
type GuardedSuggester struct {
	next    Suggester
	breaker *circuitbreaker.Breaker
	retry   retry.Config
}

// NewGuarded wraps next with a circuit breaker around a retry loop.
func NewGuarded(next Suggester, cfg GuardConfig, log logger.Logger) *GuardedSuggester {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: 1,
		Timeout:          cfg.OpenTimeout,
		OnStateChange: func(from, to circuitbreaker.State) {
			log.Warn("Suggestion circuit state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		IsFailure: func(err error) bool {
			return err != nil &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, ErrMissingCredentials)
		},
	})

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxAttempts
	retryCfg.InitialDelay = cfg.InitialDelay
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Debug("Retrying suggestion request",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}

	return &GuardedSuggester{next: next, breaker: breaker, retry: retryCfg}
}

// Suggest implements Suggester.
func (g *GuardedSuggester) Suggest(ctx context.Context, targetURL string) ([]domain.Endpoint, error) {
	var endpoints []domain.Endpoint
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, g.retry, func(ctx context.Context) error {
			var suggestErr error
			endpoints, suggestErr = g.next.Suggest(ctx, targetURL)
			return suggestErr
		})
	})
	if err != nil {
		return nil, err
	}
	return endpoints, nil
}

// State exposes the breaker state for health reporting.
func (g *GuardedSuggester) State() circuitbreaker.State {
	return g.breaker.State()
}
