// Package config provides configuration loading and management for
// alecontrast. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Thresholding parameters
	Thresholding struct {
		// VoxelP is the voxel-level false-positive rate, in (0, 1)
		VoxelP float64 `yaml:"voxelP"`

		// ClusterSizeMM3 is the minimum cluster extent in mm^3
		ClusterSizeMM3 float64 `yaml:"clusterSizeMM3"`

		// TwoSided selects two-tailed thresholding
		TwoSided bool `yaml:"twoSided"`

		// Connectivity is the cluster neighborhood: 6, 18 or 26
		Connectivity int `yaml:"connectivity"`
	} `yaml:"thresholding"`

	// Estimator parameters
	Estimator struct {
		// Iterations is the permutation count for the null distribution
		Iterations int `yaml:"iterations"`

		// Workers bounds the number of concurrent permutation workers
		Workers int `yaml:"workers"`
	} `yaml:"estimator"`

	// Output parameters
	Output struct {
		// Dir is the directory where result maps and reports are written
		Dir string `yaml:"dir"`

		// SaveDirectional writes the two directional maps after subtraction
		SaveDirectional bool `yaml:"saveDirectional"`

		// SaveReport writes the cluster report next to the thresholded map
		SaveReport bool `yaml:"saveReport"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default thresholding parameters
	cfg.Thresholding.VoxelP = 0.001
	cfg.Thresholding.ClusterSizeMM3 = 200
	cfg.Thresholding.TwoSided = true
	cfg.Thresholding.Connectivity = 6

	// Set default estimator parameters
	cfg.Estimator.Iterations = 10000
	cfg.Estimator.Workers = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.Dir = "results"
	cfg.Output.SaveDirectional = true
	cfg.Output.SaveReport = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
