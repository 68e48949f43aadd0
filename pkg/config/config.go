// Package config provides configuration loading and management for
// mrimate. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Experiment locates the PAR/REC pair to decode
	Experiment struct {
		// Dir is the directory containing the PAR and REC files
		Dir string `yaml:"dir"`

		// Name is the shared file stem (<name>.par, <name>.rec)
		Name string `yaml:"name"`
	} `yaml:"experiment"`

	// Output parameters
	Output struct {
		// DataFile is the NetCDF file the decoded channels are written to
		DataFile string `yaml:"dataFile"`

		// SaveSlices determines whether slice JPEG sequences are saved
		SaveSlices bool `yaml:"saveSlices"`

		// SlicesDir is the directory slice sequences are written to
		SlicesDir string `yaml:"slicesDir"`

		// ComputeVelocity requests the velocity channel for flow scans
		ComputeVelocity bool `yaml:"computeVelocity"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Output.DataFile = "experiment.nc"
	cfg.Output.SaveSlices = false
	cfg.Output.SlicesDir = "decoded_slices"
	cfg.Output.ComputeVelocity = true
	cfg.Output.Verbose = true

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
