package config

import (
	"runtime"
	"strings"
	"testing"
)

func TestParseEnvDefaults(t *testing.T) {
	cfg, err := ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Entities != 1000 {
		t.Fatalf("expected default entities 1000, got %d", cfg.Entities)
	}
	if cfg.Seed != 1 {
		t.Fatalf("expected default seed 1, got %d", cfg.Seed)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Fatalf("expected one worker per CPU, got %d", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("OSIM_ENTITIES", "50")
	t.Setenv("OSIM_WORKERS", "3")
	t.Setenv("OSIM_SEED", "18446744073709551615")
	t.Setenv("OSIM_SURGERY_SHIFT", "-0.25")
	t.Setenv("OSIM_DB", "/tmp/run.db")

	cfg, err := ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Entities != 50 || cfg.Workers != 3 {
		t.Fatalf("unexpected sizes: %+v", cfg)
	}
	if cfg.Seed != 1<<64-1 {
		t.Fatalf("seed = %d", cfg.Seed)
	}
	if cfg.SurgeryShift != -0.25 || cfg.Database != "/tmp/run.db" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("OSIM_ENTITIES", "not-an-int")

	_, err := ParseEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Entities: 10, Workers: 1, MaxSteps: 1, LoopCeiling: 1, ErrorRateWarn: 0.5}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative entities", func(c *Config) { c.Entities = -1 }, "entities"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"no steps", func(c *Config) { c.MaxSteps = 0 }, "max steps"},
		{"no ceiling", func(c *Config) { c.LoopCeiling = 0 }, "loop ceiling"},
		{"rate above one", func(c *Config) { c.ErrorRateWarn = 2 }, "error rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config: %v", err)
	}
}
