// Package config loads and validates the accord.yaml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config filename looked up in the working directory.
const DefaultFile = "accord.yaml"

// Config represents the coordination engine configuration.
type Config struct {
	Redis        RedisConfig        `yaml:"redis"`
	Coordination CoordinationConfig `yaml:"coordination"`
	Director     DirectorConfig     `yaml:"director"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Audit        AuditConfig        `yaml:"audit"`
	Log          LogConfig          `yaml:"log"`
}

// RedisConfig contains connection settings for the shared Redis instance.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// CoordinationConfig contains the protocol's channel, key and timing settings.
type CoordinationConfig struct {
	Channel                   string `yaml:"channel"`
	KeyPrefix                 string `yaml:"key_prefix"`
	NegotiationTimeoutSeconds int    `yaml:"negotiation_timeout_seconds"`
	PollIntervalMillis        int    `yaml:"poll_interval_millis"`
	ResponseTTLMinutes        int    `yaml:"response_ttl_minutes"`
	StateTTLMinutes           int    `yaml:"state_ttl_minutes"`
	EscalationTTLMinutes      int    `yaml:"escalation_ttl_minutes"`
	DecisionTTLMinutes        int    `yaml:"decision_ttl_minutes"`
}

// DirectorConfig identifies the arbitrating authority for this deployment.
type DirectorConfig struct {
	ID string `yaml:"id"`
}

// WebhookConfig contains the optional escalation notification endpoint.
type WebhookConfig struct {
	URL            string `yaml:"url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AuditConfig contains the audit stream settings.
type AuditConfig struct {
	Stream string `yaml:"stream"`
	MaxLen int64  `yaml:"max_len"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Coordination: CoordinationConfig{
			Channel:                   "accord:events",
			KeyPrefix:                 "accord",
			NegotiationTimeoutSeconds: 30,
			PollIntervalMillis:        500,
			ResponseTTLMinutes:        5,
			StateTTLMinutes:           60,
			EscalationTTLMinutes:      60,
			DecisionTTLMinutes:        60,
		},
		Director: DirectorConfig{
			ID: "director-1",
		},
		Webhook: WebhookConfig{
			TimeoutSeconds: 5,
		},
		Audit: AuditConfig{
			Stream: "accord:audit",
			MaxLen: 10000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses the given config file, layering it over defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault tries to load accord.yaml from the working directory,
// falling back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load(filepath.Join(".", DefaultFile))
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes the config to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Coordination.Channel == "" {
		return fmt.Errorf("coordination.channel is required")
	}
	if c.Coordination.KeyPrefix == "" {
		return fmt.Errorf("coordination.key_prefix is required")
	}
	if c.Coordination.NegotiationTimeoutSeconds < 1 {
		return fmt.Errorf("coordination.negotiation_timeout_seconds must be at least 1")
	}
	if c.Coordination.PollIntervalMillis < 10 {
		return fmt.Errorf("coordination.poll_interval_millis must be at least 10")
	}
	if c.Director.ID == "" {
		return fmt.Errorf("director.id is required")
	}
	if c.Audit.Stream == "" {
		return fmt.Errorf("audit.stream is required")
	}
	return nil
}

// NegotiationTimeout returns the response window as a duration.
func (c *Config) NegotiationTimeout() time.Duration {
	return time.Duration(c.Coordination.NegotiationTimeoutSeconds) * time.Second
}

// PollInterval returns the response poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Coordination.PollIntervalMillis) * time.Millisecond
}

// ResponseTTL returns the negotiation response record lifetime.
func (c *Config) ResponseTTL() time.Duration {
	return time.Duration(c.Coordination.ResponseTTLMinutes) * time.Minute
}

// StateTTL returns the agent state record lifetime.
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.Coordination.StateTTLMinutes) * time.Minute
}

// EscalationTTL returns the escalation context lifetime.
func (c *Config) EscalationTTL() time.Duration {
	return time.Duration(c.Coordination.EscalationTTLMinutes) * time.Minute
}

// DecisionTTL returns the director decision record lifetime.
func (c *Config) DecisionTTL() time.Duration {
	return time.Duration(c.Coordination.DecisionTTLMinutes) * time.Minute
}

// WebhookTimeout returns the notification client timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}
