// Package config reads batch run settings from the environment.
//
// Command-line flags take precedence: the CLI loads this configuration
// first and then overwrites every field whose flag was set explicitly.
package config

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings of a batch run.
type Config struct {
	Entities      int     `env:"OSIM_ENTITIES" envDefault:"1000"`
	Workers       int     `env:"OSIM_WORKERS"`
	Seed          uint64  `env:"OSIM_SEED" envDefault:"1"`
	MaxSteps      int     `env:"OSIM_MAX_STEPS" envDefault:"100000"`
	LoopCeiling   int     `env:"OSIM_LOOP_CEILING" envDefault:"1000"`
	ErrorRateWarn float64 `env:"OSIM_ERROR_RATE_WARN" envDefault:"0.01"`
	SurgeryShift  float64 `env:"OSIM_SURGERY_SHIFT"`
	Database      string  `env:"OSIM_DB"`
	MetricsFile   string  `env:"OSIM_METRICS_FILE"`
}

// ParseEnv loads the configuration from environment variables. A zero
// worker count means one worker per CPU.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg, nil
}

// Validate reports the first setting outside its domain.
func (c Config) Validate() error {
	switch {
	case c.Entities < 0:
		return fmt.Errorf("entities must not be negative, got %d", c.Entities)
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.MaxSteps < 1:
		return fmt.Errorf("max steps must be at least 1, got %d", c.MaxSteps)
	case c.LoopCeiling < 1:
		return fmt.Errorf("loop ceiling must be at least 1, got %d", c.LoopCeiling)
	case c.ErrorRateWarn < 0 || c.ErrorRateWarn > 1:
		return fmt.Errorf("error rate threshold must be in [0, 1], got %v", c.ErrorRateWarn)
	}
	return nil
}
