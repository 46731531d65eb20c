// Package resolver decides which ping endpoints a URL is submitted to.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/seo-pinger/infrastructure/circuitbreaker"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/metrics"
	"github.com/jonesrussell/seo-pinger/internal/suggest"
)

// Strategy selects the endpoint source.
type Strategy string

const (
	// StrategyCatalog uses the built-in and custom endpoints only.
	StrategyCatalog Strategy = "catalog"
	// StrategySuggested uses suggestions, falling back to the catalog.
	StrategySuggested Strategy = "suggested"
	// StrategyHybrid uses the catalog plus any new suggestions.
	StrategyHybrid Strategy = "hybrid"
)

// Strategies lists the accepted strategy names.
var Strategies = []string{string(StrategyCatalog), string(StrategySuggested), string(StrategyHybrid)}

// Metric source labels.
const (
	sourceCatalog   = "catalog"
	sourceSuggested = "suggested"
	sourceHybrid    = "hybrid"
	sourceFallback  = "fallback"
)

var errNoValidSuggestions = errors.New("no valid sites returned")

// Resolver picks endpoints per URL. It never fails: suggestion problems are
// logged and answered with the catalog.
type Resolver struct {
	strategy  Strategy
	catalog   Source
	suggested Source
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// New creates a Resolver. suggested may be nil for StrategyCatalog.
func New(strategy Strategy, catalogSource, suggestedSource Source, log logger.Logger, m *metrics.Metrics) *Resolver {
	if strategy == "" {
		strategy = StrategyCatalog
	}
	return &Resolver{
		strategy:  strategy,
		catalog:   catalogSource,
		suggested: suggestedSource,
		logger:    log,
		metrics:   m,
	}
}

// Strategy returns the configured strategy.
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// Resolve returns the endpoints for targetURL. The list is empty only when
// the catalog itself is empty.
func (r *Resolver) Resolve(ctx context.Context, targetURL string, sink event.Sink) []domain.Endpoint {
	if r.strategy == StrategyCatalog || r.suggested == nil {
		event.Log(sink, "Using the built-in list of submission sites...")
		r.metrics.ResolverSource(sourceCatalog)
		return r.catalogEndpoints(ctx, targetURL)
	}

	event.Log(sink, "Requesting suggested submission sites...")

	suggested, err := r.suggest(ctx, targetURL, sink)
	if err != nil {
		r.logger.Warn("Suggestion failed, using catalog",
			logger.String("url", targetURL),
			logger.String("strategy", string(r.strategy)),
			logger.Error(err),
		)
		event.Log(sink, fmt.Sprintf("⚠️ Could not get suggested sites (%s). Falling back to the built-in list.", Reason(err)))
		r.metrics.ResolverSource(sourceFallback)
		return r.catalogEndpoints(ctx, targetURL)
	}

	event.Log(sink, fmt.Sprintf("Using %d suggested submission site(s).", len(suggested)))

	if r.strategy == StrategyHybrid {
		r.metrics.ResolverSource(sourceHybrid)
		return mergeByTemplate(r.catalogEndpoints(ctx, targetURL), suggested)
	}

	r.metrics.ResolverSource(sourceSuggested)
	return suggested
}

func (r *Resolver) suggest(ctx context.Context, targetURL string, sink event.Sink) ([]domain.Endpoint, error) {
	raw, err := r.suggested.Endpoints(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	valid := make([]domain.Endpoint, 0, len(raw))
	for _, e := range raw {
		if reason := Validate(e); reason != "" {
			name := strings.TrimSpace(e.Name)
			if name == "" {
				name = "(unnamed)"
			}
			event.Log(sink, fmt.Sprintf("  ⚠️ Ignoring suggested site %s: %s.", name, reason))
			continue
		}
		valid = append(valid, e)
	}

	if len(valid) == 0 {
		return nil, errNoValidSuggestions
	}
	return valid, nil
}

func (r *Resolver) catalogEndpoints(ctx context.Context, targetURL string) []domain.Endpoint {
	if r.catalog == nil {
		return nil
	}
	endpoints, err := r.catalog.Endpoints(ctx, targetURL)
	if err != nil {
		r.logger.Error("Catalog source failed", logger.Error(err))
		return nil
	}
	return endpoints
}

// Validate returns why e cannot be used as a suggested endpoint, or "".
func Validate(e domain.Endpoint) string {
	return e.Problem()
}

// Reason turns a suggestion error into a short phrase for the user log.
func Reason(err error) string {
	switch {
	case errors.Is(err, suggest.ErrMissingCredentials):
		return "no API key configured"
	case errors.Is(err, suggest.ErrMalformedResponse):
		return "malformed response"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "service temporarily unavailable"
	case errors.Is(err, errNoValidSuggestions):
		return errNoValidSuggestions.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

// mergeByTemplate appends suggestions whose template is not already in base.
func mergeByTemplate(base, extra []domain.Endpoint) []domain.Endpoint {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]domain.Endpoint, 0, len(base)+len(extra))

	for _, list := range [][]domain.Endpoint{base, extra} {
		for _, e := range list {
			key := strings.TrimSpace(e.URLTemplate)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
