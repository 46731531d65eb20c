package config

import (
	"time"

	infraconfig "github.com/jonesrussell/seo-pinger/infrastructure/config"
	"github.com/jonesrussell/seo-pinger/infrastructure/profiling"
	infraredis "github.com/jonesrussell/seo-pinger/infrastructure/redis"
	"github.com/jonesrussell/seo-pinger/infrastructure/sse"
	"github.com/jonesrussell/seo-pinger/internal/resolver"
	"github.com/jonesrussell/seo-pinger/internal/schedule"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/jonesrussell/seo-pinger/internal/suggest"
)

// Default configuration values.
const (
	defaultServiceName  = "seo-pinger"
	defaultServicePort  = 8095
	defaultVersion      = "0.1.0"
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"

	defaultPingTimeout = 10 * time.Second
	defaultUserAgent   = "seo-pinger/0.1"

	defaultDelay       = 2 * time.Second
	defaultDedup       = "preserve"
	defaultGranularity = "endpoint"

	defaultStrategy = "suggested"

	defaultProvider         = "anthropic"
	defaultSuggestTimeout   = 60 * time.Second
	defaultCacheTTL         = 24 * time.Hour
	defaultFailureThreshold = 3
	defaultOpenTimeout      = 60 * time.Second
	defaultMaxAttempts      = 2
	defaultInitialDelay     = 500 * time.Millisecond

	defaultCustomFile = "custom-endpoints.yml"

	defaultRequestsPerSecond = 5
	defaultBurst             = 10

	defaultRetention  = time.Hour
	defaultMaxBatches = 100
)

// Config holds the application configuration.
type Config struct {
	Service    ServiceConfig     `yaml:"service"`
	Logging    LoggingConfig     `yaml:"logging"`
	Ping       PingConfig        `yaml:"ping"`
	Submission SubmissionConfig  `yaml:"submission"`
	Resolver   ResolverConfig    `yaml:"resolver"`
	Suggest    SuggestConfig     `yaml:"suggest"`
	Redis      infraredis.Config `yaml:"redis"`
	Catalog    CatalogConfig     `yaml:"catalog"`
	Auth       AuthConfig        `yaml:"auth"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit"`
	Batches    BatchesConfig     `yaml:"batches"`
	Events     EventsConfig      `yaml:"events"`
	Schedules  []schedule.Job    `yaml:"schedules"`
	Profiling  profiling.Config  `yaml:"profiling"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"SEO_PINGER_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"       yaml:"debug"`
	// CORSOrigins limits browser access to the API. Empty allows any origin.
	CORSOrigins []string `env:"SEO_PINGER_CORS_ORIGINS" yaml:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// PingConfig controls outbound ping calls.
type PingConfig struct {
	Timeout   time.Duration `env:"PING_TIMEOUT"    yaml:"timeout"`
	UserAgent string        `env:"PING_USER_AGENT" yaml:"user_agent"`
}

// SubmissionConfig controls batch processing.
type SubmissionConfig struct {
	// Delay between items. Negative disables the pause.
	Delay               time.Duration `env:"SUBMISSION_DELAY" yaml:"delay"`
	Dedup               string        `env:"SUBMISSION_DEDUP" yaml:"dedup"`
	ProgressGranularity string        `yaml:"progress_granularity"`
}

// ResolverConfig selects where endpoints come from.
type ResolverConfig struct {
	Strategy string `env:"RESOLVER_STRATEGY" yaml:"strategy"`
}

// SuggestConfig configures the suggestion provider and its decorators.
type SuggestConfig struct {
	Provider  string        `env:"SUGGEST_PROVIDER" yaml:"provider"`
	Model     string        `env:"SUGGEST_MODEL"    yaml:"model"`
	APIKey    string        `env:"SUGGEST_API_KEY"  yaml:"api_key"`
	BaseURL   string        `env:"SUGGEST_BASE_URL" yaml:"base_url"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`

	Cache   CacheConfig   `yaml:"cache"`
	Breaker BreakerConfig `yaml:"breaker"`
	Retry   RetryConfig   `yaml:"retry"`
}

// CacheConfig controls the Redis suggestion cache.
type CacheConfig struct {
	Enabled bool          `env:"SUGGEST_CACHE_ENABLED" yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// BreakerConfig controls the suggestion circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// RetryConfig controls retries of transient suggestion failures.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// CatalogConfig locates the custom endpoints file.
type CatalogConfig struct {
	CustomFile string `env:"CATALOG_CUSTOM_FILE" yaml:"custom_file"`
	Watch      bool   `env:"CATALOG_WATCH"       yaml:"watch"`
}

// AuthConfig protects the HTTP API. An empty secret leaves it open.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// RateLimitConfig holds per-client rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// BatchesConfig bounds the in-memory batch store.
type BatchesConfig struct {
	Retention  time.Duration `yaml:"retention"`
	MaxBatches int           `yaml:"max_batches"`
}

// EventsConfig sizes the live event stream.
type EventsConfig struct {
	EventBufferSize  int `yaml:"event_buffer_size"`
	ClientBufferSize int `yaml:"client_buffer_size"`
	MaxClients       int `yaml:"max_clients"`
}

// Load loads configuration from path. A missing file yields defaults plus env.
func Load(path string) (*Config, error) {
	return infraconfig.LoadOptional[Config](path, setDefaults)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setLoggingDefaults(&cfg.Logging)
	setPingDefaults(&cfg.Ping)
	setSubmissionDefaults(&cfg.Submission)
	setResolverDefaults(&cfg.Resolver)
	setSuggestDefaults(&cfg.Suggest)
	setCatalogDefaults(&cfg.Catalog)
	setRateLimitDefaults(&cfg.RateLimit)
	setBatchesDefaults(&cfg.Batches)
	setEventsDefaults(&cfg.Events)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

func setPingDefaults(p *PingConfig) {
	if p.Timeout == 0 {
		p.Timeout = defaultPingTimeout
	}
	if p.UserAgent == "" {
		p.UserAgent = defaultUserAgent
	}
}

func setSubmissionDefaults(s *SubmissionConfig) {
	if s.Delay == 0 {
		s.Delay = defaultDelay
	}
	if s.Dedup == "" {
		s.Dedup = defaultDedup
	}
	if s.ProgressGranularity == "" {
		s.ProgressGranularity = defaultGranularity
	}
}

func setResolverDefaults(r *ResolverConfig) {
	if r.Strategy == "" {
		r.Strategy = defaultStrategy
	}
}

func setSuggestDefaults(s *SuggestConfig) {
	if s.Provider == "" {
		s.Provider = defaultProvider
	}
	if s.Timeout == 0 {
		s.Timeout = defaultSuggestTimeout
	}
	if s.Cache.TTL == 0 {
		s.Cache.TTL = defaultCacheTTL
	}
	if s.Breaker.FailureThreshold == 0 {
		s.Breaker.FailureThreshold = defaultFailureThreshold
	}
	if s.Breaker.OpenTimeout == 0 {
		s.Breaker.OpenTimeout = defaultOpenTimeout
	}
	if s.Retry.MaxAttempts == 0 {
		s.Retry.MaxAttempts = defaultMaxAttempts
	}
	if s.Retry.InitialDelay == 0 {
		s.Retry.InitialDelay = defaultInitialDelay
	}
}

func setCatalogDefaults(c *CatalogConfig) {
	if c.CustomFile == "" {
		c.CustomFile = defaultCustomFile
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.RequestsPerSecond == 0 {
		rl.RequestsPerSecond = defaultRequestsPerSecond
	}
	if rl.Burst == 0 {
		rl.Burst = defaultBurst
	}
}

func setBatchesDefaults(b *BatchesConfig) {
	if b.Retention == 0 {
		b.Retention = defaultRetention
	}
	if b.MaxBatches == 0 {
		b.MaxBatches = defaultMaxBatches
	}
}

func setEventsDefaults(e *EventsConfig) {
	if e.EventBufferSize == 0 {
		e.EventBufferSize = sse.DefaultEventBufferSize
	}
	if e.ClientBufferSize == 0 {
		e.ClientBufferSize = sse.DefaultClientBufferSize
	}
	if e.MaxClients == 0 {
		e.MaxClients = sse.DefaultMaxClients
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	checks := []error{
		infraconfig.ValidateRequired("service.name", c.Service.Name),
		infraconfig.ValidatePort("service.port", c.Service.Port),
		infraconfig.ValidateLogLevel("logging.level", c.Logging.Level),
		infraconfig.ValidateOneOf("logging.format", c.Logging.Format, "json", "console"),
		infraconfig.ValidateNonNegativeDuration("ping.timeout", c.Ping.Timeout),
		infraconfig.ValidateOneOf("submission.dedup", c.Submission.Dedup, submission.DedupPolicies...),
		infraconfig.ValidateOneOf("submission.progress_granularity", c.Submission.ProgressGranularity,
			submission.ProgressGranularities...),
		infraconfig.ValidateOneOf("resolver.strategy", c.Resolver.Strategy, resolver.Strategies...),
		infraconfig.ValidateOneOf("suggest.provider", c.Suggest.Provider, suggest.Providers...),
		infraconfig.ValidateNonNegativeDuration("suggest.cache.ttl", c.Suggest.Cache.TTL),
		infraconfig.ValidateNonNegativeDuration("batches.retention", c.Batches.Retention),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if c.Suggest.Cache.Enabled && !c.Redis.Enabled() {
		return &infraconfig.ValidationError{
			Field:   "redis.address",
			Message: "is required when suggest.cache.enabled is set",
		}
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return &infraconfig.ValidationError{Field: "rate_limit", Message: "must not be negative"}
	}
	if c.Batches.MaxBatches < 0 {
		return &infraconfig.ValidationError{Field: "batches.max_batches", Message: "must not be negative"}
	}
	if c.Events.EventBufferSize < 0 || c.Events.ClientBufferSize < 0 || c.Events.MaxClients < 0 {
		return &infraconfig.ValidationError{Field: "events", Message: "must not be negative"}
	}

	// schedules are validated when registered so a broken entry names itself
	return nil
}
