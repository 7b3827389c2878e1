/*
Package config handles loading and saving planagent configuration.

Configuration is stored in ~/.planagent.json. Connection fields may also be
supplied through PLANNING_* environment variables, which override the file.

Schema:

	{
	  "planning": {
	    "url": "https://epm.example.com",
	    "username": "admin",
	    "apiVersion": "v3",
	    "mockMode": false
	  },
	  "dbPath": "/home/user/.planagent/agent.db",
	  "port": 8080,
	  "learning": {
	    "enabled": true,
	    "learningRate": 0.1,
	    "discountFactor": 0.9,
	    "explorationRate": 0.1,
	    "minSamples": 5
	  }
	}
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the root configuration structure.
type Config struct {
	// Planning holds the connection settings for the Planning REST API.
	Planning PlanningConfig `json:"planning"`

	// DBPath is the SQLite database location. Empty means the default
	// ~/.planagent/agent.db.
	DBPath string `json:"dbPath,omitempty"`

	// Port is the HTTP API listen port.
	Port int `json:"port,omitempty"`

	// Learning holds the reinforcement learning settings.
	Learning LearningConfig `json:"learning"`
}

// PlanningConfig holds the Planning connection settings.
type PlanningConfig struct {
	// URL is the base service URL.
	URL string `json:"url,omitempty"`

	// Username and Password are used for basic auth. The password is
	// accepted from the file but normally comes from the environment.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// APIVersion selects the REST API version segment.
	APIVersion string `json:"apiVersion,omitempty"`

	// MockMode serves canned data instead of calling the API.
	MockMode bool `json:"mockMode,omitempty"`
}

// LearningConfig holds the reinforcement learning settings.
type LearningConfig struct {
	// Enabled turns the learning layer on or off.
	Enabled bool `json:"enabled"`

	// LearningRate is the Q-learning step size.
	LearningRate float64 `json:"learningRate,omitempty"`

	// DiscountFactor weighs future rewards.
	DiscountFactor float64 `json:"discountFactor,omitempty"`

	// ExplorationRate is the epsilon-greedy exploration probability.
	ExplorationRate float64 `json:"explorationRate,omitempty"`

	// MinSamples is the call count before metrics earn full trust.
	MinSamples int `json:"minSamples,omitempty"`
}

// NewConfig creates a configuration with defaults.
func NewConfig() *Config {
	return &Config{
		Planning: PlanningConfig{
			APIVersion: "v3",
		},
		Port: 8080,
		Learning: LearningConfig{
			Enabled:         true,
			LearningRate:    0.1,
			DiscountFactor:  0.9,
			ExplorationRate: 0.1,
			MinSamples:      5,
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.planagent.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".planagent.json"), nil
}

// Load reads the configuration from the default path, falling back to
// defaults when no file exists, then applies environment overrides.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = NewConfig()
		} else {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFrom reads the configuration from a specific path. Missing optional
// fields keep their defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize fills zero values with defaults after decoding.
func (c *Config) normalize() {
	if c.Planning.APIVersion == "" {
		c.Planning.APIVersion = "v3"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Learning.LearningRate == 0 {
		c.Learning.LearningRate = 0.1
	}
	if c.Learning.DiscountFactor == 0 {
		c.Learning.DiscountFactor = 0.9
	}
	if c.Learning.ExplorationRate == 0 {
		c.Learning.ExplorationRate = 0.1
	}
	if c.Learning.MinSamples == 0 {
		c.Learning.MinSamples = 5
	}
}

// applyEnv overrides file values with PLANNING_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PLANNING_URL"); v != "" {
		c.Planning.URL = v
	}
	if v := os.Getenv("PLANNING_USERNAME"); v != "" {
		c.Planning.Username = v
	}
	if v := os.Getenv("PLANNING_PASSWORD"); v != "" {
		c.Planning.Password = v
	}
	if v := os.Getenv("PLANNING_API_VERSION"); v != "" {
		c.Planning.APIVersion = v
	}
	if v := os.Getenv("PLANNING_MOCK_MODE"); v != "" {
		if mock, err := strconv.ParseBool(v); err == nil {
			c.Planning.MockMode = mock
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
