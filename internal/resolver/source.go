package resolver

import (
	"context"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/catalog"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/suggest"
)

// Source produces a candidate endpoint list for a target URL.
type Source interface {
	Endpoints(ctx context.Context, targetURL string) ([]domain.Endpoint, error)
}

// CustomLister supplies user-defined endpoints.
type CustomLister interface {
	List() []domain.Endpoint
}

// CatalogSource serves the built-in catalog followed by custom endpoints.
type CatalogSource struct {
	custom CustomLister
	logger logger.Logger
}

// NewCatalogSource creates a CatalogSource. custom may be nil.
func NewCatalogSource(custom CustomLister, log logger.Logger) *CatalogSource {
	return &CatalogSource{custom: custom, logger: log}
}

// Endpoints never fails.
func (s *CatalogSource) Endpoints(context.Context, string) ([]domain.Endpoint, error) {
	if s.custom == nil {
		return catalog.Default(), nil
	}
	return catalog.Merge(catalog.Default(), s.custom.List(), s.logger), nil
}

// SuggestedSource asks a suggestion service. Its output is unvalidated.
type SuggestedSource struct {
	suggester suggest.Suggester
}

// NewSuggestedSource wraps s.
func NewSuggestedSource(s suggest.Suggester) *SuggestedSource {
	return &SuggestedSource{suggester: s}
}

// Endpoints implements Source.
func (s *SuggestedSource) Endpoints(ctx context.Context, targetURL string) ([]domain.Endpoint, error) {
	return s.suggester.Suggest(ctx, targetURL)
}
