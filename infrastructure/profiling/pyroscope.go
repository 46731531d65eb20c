// Package profiling starts optional continuous profiling.
package profiling

import (
	"fmt"
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
)

// Config controls the Pyroscope agent.
type Config struct {
	Enabled     bool   `env:"PYROSCOPE_ENABLED"     yaml:"pyroscope_enabled"`
	ServerURL   string `env:"PYROSCOPE_SERVER_URL"  yaml:"pyroscope_server"`
	Environment string `env:"PYROSCOPE_ENVIRONMENT" yaml:"environment"`
}

const (
	defaultServerURL   = "http://pyroscope:4040"
	defaultEnvironment = "development"
)

// PyroscopeProfiler holds the Pyroscope profiler instance
type PyroscopeProfiler struct {
	profiler *pyroscope.Profiler
}

// StartPyroscope starts continuous profiling for serviceName. It returns a nil
// profiler when cfg.Enabled is false; Stop is safe to call on nil.
func StartPyroscope(cfg Config, serviceName, version string, log logger.Logger) (*PyroscopeProfiler, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	environment := cfg.Environment
	if environment == "" {
		environment = defaultEnvironment
	}

	config := pyroscope.Config{
		ApplicationName: serviceName,
		ServerAddress:   serverURL,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"environment": environment,
			"version":     version,
			"hostname":    getHostname(),
			"go_version":  runtime.Version(),
		},
	}

	profiler, err := pyroscope.Start(config)
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}

	log.Info("Pyroscope continuous profiling started",
		logger.String("application", config.ApplicationName),
		logger.String("server", serverURL),
		logger.String("environment", environment),
	)

	return &PyroscopeProfiler{profiler: profiler}, nil
}

// Stop gracefully stops the Pyroscope profiler
func (p *PyroscopeProfiler) Stop() error {
	if p == nil || p.profiler == nil {
		return nil
	}
	return p.profiler.Stop()
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
