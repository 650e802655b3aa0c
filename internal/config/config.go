// Package config loads and validates the atelier.yml configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config omits a field.
const (
	DefaultListen         = ":8080"
	DefaultRedisURL       = "redis://localhost:6379"
	DefaultTimeoutSeconds = 120
)

// Config represents the top-level atelier.yml configuration.
type Config struct {
	Version      string       `yaml:"version"`
	InstanceName string       `yaml:"instance_name"`
	Server       ServerConfig `yaml:"server,omitempty"`
	Redis        RedisConfig  `yaml:"redis,omitempty"`
	Agent        AgentConfig  `yaml:"agent,omitempty"`
}

// ServerConfig specifies the HTTP/WebSocket listener.
type ServerConfig struct {
	Listen string `yaml:"listen,omitempty"` // host:port, default ":8080"
}

// RedisConfig specifies the workspace store connection.
// The REDIS_URL environment variable overrides the file value.
type RedisConfig struct {
	URL string `yaml:"url,omitempty"`
}

// AgentConfig specifies the responder model and its call budget.
// The API key is never read from the file: it comes from GEMINI_API_KEY.
type AgentConfig struct {
	Model          string `yaml:"model,omitempty"`           // default gemini-2.5-flash (see internal/agent)
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // per-call budget, default 120
}

// Load reads, parses, defaults and validates an atelier.yml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults fills unset fields, honoring the REDIS_URL env override.
func (c *Config) applyDefaults() {
	if c.InstanceName == "" {
		c.InstanceName = "default"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Redis.URL = url
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if c.Agent.TimeoutSeconds == 0 {
		c.Agent.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version field is required")
	}

	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version %q (expected \"1.0\")", c.Version)
	}

	if c.Agent.TimeoutSeconds < 0 {
		return fmt.Errorf("agent.timeout_seconds cannot be negative")
	}

	return nil
}

// GeminiAPIKey returns the responder API key from the environment.
// An empty return means the serve command must refuse to start.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}
