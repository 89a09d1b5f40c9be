// Package config aggregates the settings of every component into one YAML
// document.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/simspace/pkg/descriptor"
	"github.com/sanonone/simspace/pkg/kernel"
	"github.com/sanonone/simspace/pkg/relax"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root of the YAML document.
type Config struct {
	Descriptor descriptor.Options `yaml:"descriptor"`
	Kernel     kernel.Config      `yaml:"kernel"`
	Potentials PotentialsConfig   `yaml:"potentials"`
	Relax      relax.Config       `yaml:"relax"`
	Output     OutputConfig       `yaml:"output"`
	Log        LogConfig          `yaml:"log"`
}

// PotentialsConfig selects the self potentials added to the kernel energy.
type PotentialsConfig struct {
	LJ LJConfig `yaml:"lj"`
}

// LJConfig configures the repulsive Lennard-Jones wall.
type LJConfig struct {
	Enabled bool    `yaml:"enabled"`
	Sigma   float64 `yaml:"sigma"`
}

// OutputConfig sets where dumps are written.
type OutputConfig struct {
	// Prefix is prepended to every output file name.
	Prefix string `yaml:"prefix"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a working configuration.
func DefaultConfig() Config {
	return Config{
		Descriptor: descriptor.DefaultOptions(),
		Kernel:     kernel.DefaultConfig(),
		Potentials: PotentialsConfig{
			LJ: LJConfig{Enabled: true, Sigma: 0.5},
		},
		Relax:  relax.DefaultConfig(),
		Output: OutputConfig{Prefix: "out"},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML configuration file using strict parsing.
// Missing keys keep their defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}

	return cfg, nil
}

// Validate builds every tagged component once so that unknown variants and
// bad parameters surface before any work starts.
func (c Config) Validate() error {
	if _, err := descriptor.NewBasis(c.Descriptor); err != nil {
		return fmt.Errorf("descriptor: %w", err)
	}
	if _, err := kernel.NewFunction(c.Kernel); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	if _, err := kernel.NewAdaptor(c.Kernel); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	if c.Potentials.LJ.Enabled && c.Potentials.LJ.Sigma <= 0 {
		return fmt.Errorf("potentials.lj.sigma=%g: %w", c.Potentials.LJ.Sigma, ErrInvalidConfig)
	}
	if c.Relax.GradTol <= 0 {
		return fmt.Errorf("relax.gtol=%g: %w", c.Relax.GradTol, ErrInvalidConfig)
	}
	if c.Relax.MaxIterations < 0 || c.Relax.MaxEvaluations < 0 {
		return fmt.Errorf("relax limits must not be negative: %w", ErrInvalidConfig)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level=%q: %w", l.Level, ErrInvalidConfig)
	}
	return lvl, nil
}
