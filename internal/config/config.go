package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynblocks/internal/codegen"
	"github.com/san-kum/dynblocks/internal/sim"
)

const (
	DefaultDt        = 0.01
	DefaultDuration  = 10.0
	DefaultTolerance = 1e-6
	DefaultDataDir   = "runs"
)

// Config holds the settings of a generate-and-simulate run.
type Config struct {
	Integrator string  `yaml:"integrator"`
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`
	Adaptive   bool    `yaml:"adaptive"`
	Tolerance  float64 `yaml:"tolerance"`
	Workers    int     `yaml:"workers"`

	Generate codegen.Config `yaml:",inline"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	DataDir   string `yaml:"data_dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Integrator: "rk4",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  DefaultTolerance,
		Generate:   codegen.Config{Simplify: true},
		LogLevel:   "info",
		LogFormat:  "text",
		DataDir:    DefaultDataDir,
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	switch {
	case c.Dt <= 0:
		return errors.Errorf("dt must be positive, got %g", c.Dt)
	case c.Duration <= 0:
		return errors.Errorf("duration must be positive, got %g", c.Duration)
	case c.Adaptive && c.Tolerance <= 0:
		return errors.Errorf("tolerance must be positive for adaptive stepping, got %g", c.Tolerance)
	case c.Workers < 0:
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Sim returns the simulator settings.
func (c *Config) Sim() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Dt = c.Dt
	cfg.Duration = c.Duration
	cfg.Adaptive = c.Adaptive
	if c.Tolerance > 0 {
		cfg.Tolerance = c.Tolerance
	}
	if cfg.MaxDt < c.Dt {
		cfg.MaxDt = c.Dt
	}
	return cfg
}
