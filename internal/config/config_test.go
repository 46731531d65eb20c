package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	infraconfig "github.com/jonesrussell/seo-pinger/infrastructure/config"
)

func TestSetDefaults(t *testing.T) {
	t.Helper()

	cfg := &Config{}
	setDefaults(cfg)

	assertStringEqual(t, "service.name", defaultServiceName, cfg.Service.Name)
	assertStringEqual(t, "service.version", defaultVersion, cfg.Service.Version)
	assertIntEqual(t, "service.port", defaultServicePort, cfg.Service.Port)
	assertStringEqual(t, "logging.level", defaultLoggingLevel, cfg.Logging.Level)
	assertStringEqual(t, "logging.format", defaultLoggingFmt, cfg.Logging.Format)

	assertDurationEqual(t, "ping.timeout", defaultPingTimeout, cfg.Ping.Timeout)
	assertStringEqual(t, "ping.user_agent", defaultUserAgent, cfg.Ping.UserAgent)

	assertDurationEqual(t, "submission.delay", defaultDelay, cfg.Submission.Delay)
	assertStringEqual(t, "submission.dedup", "preserve", cfg.Submission.Dedup)
	assertStringEqual(t, "submission.progress_granularity", "endpoint", cfg.Submission.ProgressGranularity)
	assertStringEqual(t, "resolver.strategy", "suggested", cfg.Resolver.Strategy)

	assertStringEqual(t, "suggest.provider", defaultProvider, cfg.Suggest.Provider)
	assertDurationEqual(t, "suggest.cache.ttl", 24*time.Hour, cfg.Suggest.Cache.TTL)
	assertIntEqual(t, "suggest.breaker.failure_threshold", 3, cfg.Suggest.Breaker.FailureThreshold)
	assertDurationEqual(t, "suggest.breaker.open_timeout", time.Minute, cfg.Suggest.Breaker.OpenTimeout)
	assertIntEqual(t, "suggest.retry.max_attempts", 2, cfg.Suggest.Retry.MaxAttempts)

	assertStringEqual(t, "catalog.custom_file", defaultCustomFile, cfg.Catalog.CustomFile)
	assertIntEqual(t, "rate_limit.burst", defaultBurst, cfg.RateLimit.Burst)
	assertDurationEqual(t, "batches.retention", time.Hour, cfg.Batches.Retention)
	assertIntEqual(t, "batches.max_batches", defaultMaxBatches, cfg.Batches.MaxBatches)
	assertIntEqual(t, "events.event_buffer_size", 1000, cfg.Events.EventBufferSize)
	assertIntEqual(t, "events.client_buffer_size", 256, cfg.Events.ClientBufferSize)
	assertIntEqual(t, "events.max_clients", 100, cfg.Events.MaxClients)
}

func TestSetDefaults_KeepsExplicitValues(t *testing.T) {
	t.Helper()

	cfg := &Config{}
	cfg.Submission.Delay = -1
	cfg.Resolver.Strategy = "hybrid"
	setDefaults(cfg)

	assertDurationEqual(t, "submission.delay", -1, cfg.Submission.Delay)
	assertStringEqual(t, "resolver.strategy", "hybrid", cfg.Resolver.Strategy)
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Helper()

	if err := Default().Validate(); err != nil {
		t.Fatalf("expected no validation error, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Helper()

	testCases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "strategy",
			mutate: func(c *Config) { c.Resolver.Strategy = "random" },
			want:   "resolver.strategy: must be one of: catalog, suggested, hybrid",
		},
		{
			name:   "dedup",
			mutate: func(c *Config) { c.Submission.Dedup = "sort" },
			want:   "submission.dedup: must be one of: preserve, unique",
		},
		{
			name:   "granularity",
			mutate: func(c *Config) { c.Submission.ProgressGranularity = "fine" },
			want:   "submission.progress_granularity: must be one of: endpoint, coarse",
		},
		{
			name:   "provider",
			mutate: func(c *Config) { c.Suggest.Provider = "gemini" },
			want:   "suggest.provider: must be one of: anthropic, openai, ollama, none",
		},
		{
			name:   "cache without redis",
			mutate: func(c *Config) { c.Suggest.Cache.Enabled = true },
			want:   "redis.address: is required when suggest.cache.enabled is set",
		},
		{
			name:   "events",
			mutate: func(c *Config) { c.Events.ClientBufferSize = -1 },
			want:   "events: must not be negative",
		},
		{
			name:   "service name",
			mutate: func(c *Config) { c.Service.Name = " " },
			want:   "service.name: is required",
		},
		{
			name:   "port",
			mutate: func(c *Config) { c.Service.Port = 70000 },
			want:   "service.port: must be between 1 and 65535",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var verr *infraconfig.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if err.Error() != tc.want {
				t.Errorf("error message: got %q, want %q", err.Error(), tc.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	body := `
service:
  port: 9000
resolver:
  strategy: catalog
submission:
  delay: 500ms
  dedup: unique
events:
  client_buffer_size: 512
schedules:
  - name: nightly
    cron: "0 3 * * *"
    urls:
      - https://example.com/sitemap.xml
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	assertIntEqual(t, "service.port", 9000, cfg.Service.Port)
	assertStringEqual(t, "resolver.strategy", "catalog", cfg.Resolver.Strategy)
	assertDurationEqual(t, "submission.delay", 500*time.Millisecond, cfg.Submission.Delay)
	assertStringEqual(t, "submission.dedup", "unique", cfg.Submission.Dedup)
	assertStringEqual(t, "service.name", defaultServiceName, cfg.Service.Name)
	assertIntEqual(t, "events.client_buffer_size", 512, cfg.Events.ClientBufferSize)
	assertIntEqual(t, "events.event_buffer_size", 1000, cfg.Events.EventBufferSize)

	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Name != "nightly" {
		t.Fatalf("schedules: got %+v", cfg.Schedules)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertIntEqual(t, "service.port", defaultServicePort, cfg.Service.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RESOLVER_STRATEGY", "hybrid")
	t.Setenv("SEO_PINGER_PORT", "9100")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertStringEqual(t, "resolver.strategy", "hybrid", cfg.Resolver.Strategy)
	assertIntEqual(t, "service.port", 9100, cfg.Service.Port)
}

func assertStringEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}

func assertIntEqual(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %d, want %d", field, got, want)
	}
}

func assertDurationEqual(t *testing.T, field string, want, got time.Duration) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", field, got, want)
	}
}
