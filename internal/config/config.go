// Package config loads the engine tuning: Earth model, solver limits,
// boundary search and shadow grid.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/star/eclipse/internal/besselian"
	"github.com/star/eclipse/internal/contact"
	"github.com/star/eclipse/internal/local"
	"github.com/star/eclipse/internal/paths"
	"github.com/star/eclipse/internal/shadow"
)

// Config is the engine configuration document.
type Config struct {
	Earth           besselian.EarthModel `yaml:"earth"`
	Solver          contact.Config       `yaml:"solver"`
	HorizonAltitude float64              `yaml:"horizon_altitude"` // degrees
	Paths           paths.Config         `yaml:"paths"`
	Shadow          shadow.Config        `yaml:"shadow"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Earth:  besselian.WGS84,
		Solver: contact.DefaultConfig(),
		Paths:  paths.DefaultConfig(),
		Shadow: shadow.DefaultConfig(),
	}
}

// Load reads a YAML configuration file over the defaults and applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides reads the ECLIPSE_* tuning variables.
func (c *Config) applyEnvOverrides() error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"ECLIPSE_HORIZON_ALTITUDE", &c.HorizonAltitude},
		{"ECLIPSE_PATH_RESOLUTION", &c.Paths.Resolution},
		{"ECLIPSE_SHADOW_GRID_STEP", &c.Shadow.GridStep},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = n
	}

	if v := os.Getenv("ECLIPSE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ECLIPSE_WORKERS: %w", err)
		}
		c.Shadow.Workers = n
	}
	return nil
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Earth.AxisRatio <= 0 || c.Earth.AxisRatio > 1 {
		errs = append(errs, fmt.Errorf("earth.axis_ratio %v out of (0, 1]", c.Earth.AxisRatio))
	}
	if c.Earth.EquatorialRadius <= 0 {
		errs = append(errs, fmt.Errorf("earth.equatorial_radius must be positive"))
	}
	if c.Solver.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("solver.max_iterations must be positive"))
	}
	if c.Solver.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("solver.tolerance_hours must be positive"))
	}
	if c.Paths.Resolution <= 0 || c.Paths.Resolution > 10 {
		errs = append(errs, fmt.Errorf("paths.resolution %v out of (0, 10]", c.Paths.Resolution))
	}
	if c.Shadow.GridStep <= 0 {
		errs = append(errs, fmt.Errorf("shadow.grid_step must be positive"))
	}
	if t := c.Shadow.PoleSmoothing.Trigger; t < 0 || t >= 90 {
		errs = append(errs, fmt.Errorf("shadow.pole_smoothing.trigger_latitude %v out of [0, 90)", t))
	}
	return errors.Join(errs...)
}

// LocalOptions returns the evaluator options.
func (c *Config) LocalOptions() local.Options {
	return local.Options{
		Earth:           c.Earth,
		Solver:          c.Solver,
		HorizonAltitude: c.HorizonAltitude,
	}
}
