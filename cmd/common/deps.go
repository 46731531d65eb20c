// Package common provides shared utilities for command implementations.
package common

import (
	"fmt"

	infraconfig "github.com/jonesrussell/seo-pinger/infrastructure/config"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/config"
)

// GlobalFlags holds the persistent root flags.
type GlobalFlags struct {
	ConfigPath string
	Debug      bool
}

// CommandDeps holds common dependencies for all commands.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewCommandDeps loads and validates the configuration and builds the
// operational logger. CLI commands keep it quiet on stderr so stdout carries
// only the submission log.
func NewCommandDeps(flags *GlobalFlags, quiet bool) (*CommandDeps, error) {
	path := flags.ConfigPath
	if path == "" {
		path = infraconfig.GetConfigPath("config.yml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.Debug {
		cfg.Service.Debug = true
		cfg.Logging.Level = "debug"
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}

	log, err := createLogger(cfg, quiet)
	if err != nil {
		return nil, err
	}
	return &CommandDeps{Config: cfg, Logger: log}, nil
}

func createLogger(cfg *config.Config, quiet bool) (logger.Logger, error) {
	lc := logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	}
	if quiet {
		lc.Format = logger.FormatConsole
		lc.OutputPaths = []string{"stderr"}
		if !cfg.Service.Debug {
			lc.Level = "warn"
		}
	}

	log, err := logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}
