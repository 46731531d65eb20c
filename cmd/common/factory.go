package common

import (
	"context"
	"fmt"

	infrahttp "github.com/jonesrussell/seo-pinger/infrastructure/http"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	infraredis "github.com/jonesrussell/seo-pinger/infrastructure/redis"
	"github.com/jonesrussell/seo-pinger/internal/catalog"
	"github.com/jonesrussell/seo-pinger/internal/config"
	"github.com/jonesrussell/seo-pinger/internal/metrics"
	"github.com/jonesrussell/seo-pinger/internal/ping"
	"github.com/jonesrussell/seo-pinger/internal/resolver"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/jonesrussell/seo-pinger/internal/suggest"
	"github.com/redis/go-redis/v9"
)

// Pipeline is the wired submission stack shared by every command.
type Pipeline struct {
	Registry     *catalog.Registry
	Resolver     *resolver.Resolver
	Executor     *ping.Executor
	Orchestrator *submission.Orchestrator
	Metrics      *metrics.Metrics
	Redis        *redis.Client
}

// Close releases the Redis connection, if any.
func (p *Pipeline) Close() error {
	if p.Redis == nil {
		return nil
	}
	if err := p.Redis.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

// NewPipeline builds the catalog, resolver, executor and orchestrator from
// cfg. Redis is only dialled when the suggestion cache is enabled.
func NewPipeline(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	m := metrics.New()

	registry, err := catalog.NewRegistry(cfg.Catalog.CustomFile, log)
	if err != nil {
		return nil, fmt.Errorf("load custom endpoints: %w", err)
	}

	var rdb *redis.Client
	if cfg.Suggest.Cache.Enabled {
		rdb, err = infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	suggester, err := suggest.New(suggestOptions(cfg, rdb), log)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, fmt.Errorf("create suggester: %w", err)
	}

	res := resolver.New(
		resolver.Strategy(cfg.Resolver.Strategy),
		resolver.NewCatalogSource(registry, log),
		resolver.NewSuggestedSource(suggester),
		log,
		m,
	)

	client := infrahttp.NewClient(&infrahttp.ClientConfig{
		Timeout:   cfg.Ping.Timeout,
		UserAgent: cfg.Ping.UserAgent,
	})
	exec := ping.NewExecutor(client, log, ping.WithTimeout(cfg.Ping.Timeout), ping.WithMetrics(m))

	orch := submission.NewOrchestrator(res, exec, log, submission.Options{
		Delay:       cfg.Submission.Delay,
		Granularity: submission.ProgressGranularity(cfg.Submission.ProgressGranularity),
		Metrics:     m,
	})

	return &Pipeline{
		Registry:     registry,
		Resolver:     res,
		Executor:     exec,
		Orchestrator: orch,
		Metrics:      m,
		Redis:        rdb,
	}, nil
}

func suggestOptions(cfg *config.Config, rdb *redis.Client) suggest.Options {
	s := cfg.Suggest
	return suggest.Options{
		Provider: s.Provider,
		ProviderConfig: suggest.ProviderConfig{
			APIKey:    s.APIKey,
			BaseURL:   s.BaseURL,
			Model:     s.Model,
			MaxTokens: s.MaxTokens,
			Timeout:   s.Timeout,
		},
		Guard: suggest.GuardConfig{
			FailureThreshold: s.Breaker.FailureThreshold,
			OpenTimeout:      s.Breaker.OpenTimeout,
			MaxAttempts:      s.Retry.MaxAttempts,
			InitialDelay:     s.Retry.InitialDelay,
		},
		Redis:    rdb,
		CacheTTL: s.Cache.TTL,
	}
}
