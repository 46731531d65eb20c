// Package ping sends best-effort notifications to ping endpoints.
package ping

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/metrics"
)

// DefaultTimeout bounds a single ping.
const DefaultTimeout = 10 * time.Second

// maxDrainBytes caps how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Executor pings every endpoint for a target URL concurrently.
type Executor struct {
	client  Doer
	timeout time.Duration
	logger  logger.Logger
	metrics *metrics.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMetrics records ping outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an Executor sending requests through client.
func NewExecutor(client Doer, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		client:  client,
		timeout: DefaultTimeout,
		logger:  log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute sends one GET per endpoint and returns once every attempt has
// settled. Failures are reported through sink and never returned.
// onEndpointDone, if set, is called once per endpoint with a strictly
// increasing done count.
func (e *Executor) Execute(
	ctx context.Context,
	targetURL string,
	endpoints []domain.Endpoint,
	sink event.Sink,
	onEndpointDone func(done, total int),
) {
	total := len(endpoints)

	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)

	// emit serialises sink and progress callbacks across goroutines.
	emit := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}
	settle := func() {
		emit(func() {
			done++
			if onEndpointDone != nil {
				onEndpointDone(done, total)
			}
		})
	}

	for _, endpoint := range endpoints {
		pingURL, ok := BuildURL(endpoint.URLTemplate, targetURL)
		if !ok {
			emit(func() {
				event.LogSite(sink, fmt.Sprintf("  ⚠️ No valid submission URL for %s. Skipping.", endpoint.Name), endpoint.Description)
			})
			e.metrics.ObservePing(metrics.OutcomeSkipped, 0)
			settle()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer settle()

			emit(func() {
				event.LogSite(sink, fmt.Sprintf("Pinging %s...", endpoint.Name), endpoint.Description)
			})

			if err := e.send(ctx, endpoint, pingURL); err != nil {
				emit(func() {
					event.LogSite(sink, fmt.Sprintf("  ❌ Failed to send request to %s.", endpoint.Name), endpoint.Description)
				})
				return
			}
			emit(func() {
				event.LogSite(sink, fmt.Sprintf("  ✅ Request sent to %s.", endpoint.Name), endpoint.Description)
			})
		}()
	}

	wg.Wait()
}

// send performs one ping. Any HTTP response counts as delivered.
func (e *Executor) send(ctx context.Context, endpoint domain.Endpoint, pingURL string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, http.NoBody)
	if err != nil {
		e.metrics.ObservePing(metrics.OutcomeFailure, time.Since(start))
		e.logger.Warn("Invalid ping request",
			logger.String("endpoint", endpoint.Name),
			logger.Error(err),
		)
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		e.metrics.ObservePing(metrics.OutcomeFailure, elapsed)
		e.logger.Debug("Ping failed",
			logger.String("endpoint", endpoint.Name),
			logger.Duration("duration", elapsed),
			logger.Error(err),
		)
		return fmt.Errorf("send ping: %w", err)
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()

	e.metrics.ObservePing(metrics.OutcomeSuccess, elapsed)
	e.logger.Debug("Ping sent",
		logger.String("endpoint", endpoint.Name),
		logger.Int("status_code", resp.StatusCode),
		logger.Duration("duration", elapsed),
	)
	return nil
}
