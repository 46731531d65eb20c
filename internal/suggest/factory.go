package suggest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/redis/go-redis/v9"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"
)

// Providers lists the accepted provider names.
var Providers = []string{ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderNone}

// ProviderConfig configures a single provider.
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Options assembles a suggester with its decorators.
type Options struct {
	Provider string
	ProviderConfig
	Guard GuardConfig

	// Redis enables the cache when non-nil.
	Redis    *redis.Client
	CacheTTL time.Duration
}

// New builds the suggester named by opts.Provider. A provider without
// credentials degrades to None with a warning rather than failing startup.
// The cache sits outside the guard, so cache hits never touch the breaker.
func New(opts Options, log logger.Logger) (Suggester, error) {
	var (
		base Suggester
		err  error
	)

	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderAnthropic:
		base, err = NewAnthropic(opts.ProviderConfig)
	case ProviderOpenAI:
		base, err = NewOpenAI(opts.ProviderConfig)
	case ProviderOllama:
		base = NewOllama(opts.ProviderConfig)
	case ProviderNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, opts.Provider)
	}

	if errors.Is(err, ErrMissingCredentials) {
		log.Warn("Suggestion provider has no API key; suggestions disabled",
			logger.String("provider", opts.Provider),
		)
		return None{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s suggester: %w", opts.Provider, err)
	}

	var s Suggester = NewGuarded(base, opts.Guard, log)
	if opts.Redis != nil {
		s = NewCached(s, opts.Redis, opts.CacheTTL, log)
	}
	return s, nil
}
