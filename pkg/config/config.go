// Package config provides configuration loading and management for malisweight.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"malisweight/pkg/loss"
	"malisweight/pkg/malis"
	"malisweight/pkg/segment"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Structured weight parameters
	Malis struct {
		// NormType is one of none, frac-count or frac-pair
		NormType string `yaml:"normType"`

		// Threshold binarizes predictions for the rand error
		Threshold float64 `yaml:"threshold"`

		// LabelThreshold binarizes a 3-channel affinity ground truth
		LabelThreshold float64 `yaml:"labelThreshold"`

		// Constrained selects the label-constrained boundary map variant
		Constrained bool `yaml:"constrained"`

		// Workers bounds the boundary-map slices weighed in parallel
		Workers int `yaml:"workers"`

		// VerifyForest cross-checks every spanning forest with gonum's Kruskal
		VerifyForest bool `yaml:"verifyForest"`
	} `yaml:"malis"`

	// Elementwise loss parameters
	Loss struct {
		// Type names the cost function the weights are applied to
		Type string `yaml:"type"`

		// Margin is the dead zone of the square-square loss
		Margin float64 `yaml:"margin"`
	} `yaml:"loss"`

	// Output parameters
	Output struct {
		// SaveSlices writes weight and error volumes as JPEG slices
		SaveSlices bool `yaml:"saveSlices"`

		// SlicesDir is where the slices are written
		SlicesDir string `yaml:"slicesDir"`

		// Verbose switches to human readable console logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Log parameters
	Log struct {
		// Level is a zerolog level name
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Malis.NormType = string(malis.NormNone)
	cfg.Malis.Threshold = 0.5
	cfg.Malis.LabelThreshold = segment.DefaultAffinityThreshold
	cfg.Malis.Constrained = false
	cfg.Malis.Workers = runtime.NumCPU()

	cfg.Loss.Type = string(loss.Square)
	cfg.Loss.Margin = 0.2

	cfg.Output.SaveSlices = false
	cfg.Output.SlicesDir = "weight_slices"
	cfg.Output.Verbose = true

	cfg.Log.Level = "info"

	return cfg
}

// Validate checks the values that have a closed set of choices
func (c *Config) Validate() error {
	if _, err := malis.ParseNormType(c.Malis.NormType); err != nil {
		return err
	}
	if _, err := loss.ByType(loss.Type(c.Loss.Type), c.Loss.Margin); err != nil {
		return err
	}
	if c.Malis.Workers < 0 {
		return fmt.Errorf("malis workers must be non-negative, got %d", c.Malis.Workers)
	}
	return nil
}

// MalisOptions converts the malis section into weight computation options
func (c *Config) MalisOptions() (malis.Options, error) {
	norm, err := malis.ParseNormType(c.Malis.NormType)
	if err != nil {
		return malis.Options{}, err
	}
	return malis.Options{
		Norm:           norm,
		Threshold:      c.Malis.Threshold,
		LabelThreshold: c.Malis.LabelThreshold,
		Constrained:    c.Malis.Constrained,
		Workers:        c.Malis.Workers,
		VerifyForest:   c.Malis.VerifyForest,
	}, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
