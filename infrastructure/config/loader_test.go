package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name  string        `yaml:"name"`
	Delay time.Duration `env:"TEST_PINGER_DELAY" yaml:"delay"`
	Ping  struct {
		Timeout time.Duration `env:"TEST_PINGER_TIMEOUT" yaml:"timeout"`
		Agents  []string      `env:"TEST_PINGER_AGENTS"  yaml:"agents"`
		Debug   bool          `env:"TEST_PINGER_DEBUG"   yaml:"debug"`
	} `yaml:"ping"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOptional_ParsesYAML(t *testing.T) {
	path := writeConfig(t, "name: pinger\ndelay: 2s\nping:\n  timeout: 10s\n")

	cfg, err := config.LoadOptional[testConfig](path, nil)
	require.NoError(t, err)

	assert.Equal(t, "pinger", cfg.Name)
	assert.Equal(t, 2*time.Second, cfg.Delay)
	assert.Equal(t, 10*time.Second, cfg.Ping.Timeout)
}

func TestLoadOptional_EnvWinsOverDefaults(t *testing.T) {
	t.Setenv("TEST_PINGER_DELAY", "500ms")
	t.Setenv("TEST_PINGER_AGENTS", "a, b")
	t.Setenv("TEST_PINGER_DEBUG", "yes")

	path := writeConfig(t, "name: pinger\n")

	cfg, err := config.LoadOptional(path, func(c *testConfig) {
		if c.Delay == 0 {
			c.Delay = 2 * time.Second
		}
		if c.Ping.Timeout == 0 {
			c.Ping.Timeout = 10 * time.Second
		}
	})
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Delay)
	assert.Equal(t, 10*time.Second, cfg.Ping.Timeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Ping.Agents)
	assert.True(t, cfg.Ping.Debug)
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadOptional(filepath.Join(t.TempDir(), "missing.yml"), func(c *testConfig) {
		c.Name = "default"
	})
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Name)
}

func TestLoadOptional_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "name: [unterminated\n")

	_, err := config.LoadOptional[testConfig](path, nil)
	require.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", config.GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/seo-pinger.yml")
	assert.Equal(t, "/etc/seo-pinger.yml", config.GetConfigPath("config.yml"))
}

func TestValidators(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"required", config.ValidateRequired("suggest.model", " "), "suggest.model: is required"},
		{"port", config.ValidatePort("service.port", 0), "service.port: must be between 1 and 65535"},
		{"level", config.ValidateLogLevel("logging.level", "loud"),
			"logging.level: must be one of: debug, info, warn, warning, error, fatal"},
		{"one of", config.ValidateOneOf("resolver.strategy", "x", "catalog", "suggested"),
			"resolver.strategy: must be one of: catalog, suggested"},
		{"duration", config.ValidateNonNegativeDuration("submission.delay", -time.Second),
			"submission.delay: must not be negative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err)
			assert.Equal(t, tc.wantMsg, tc.err.Error())
		})
	}

	assert.NoError(t, config.ValidatePort("service.port", 8080))
	assert.NoError(t, config.ValidateOneOf("resolver.strategy", "catalog", "catalog"))
}
