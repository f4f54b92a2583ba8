// Package main provides the PulseBoard alerting server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Records    RecordsConfig    `yaml:"records"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Email      EmailConfig      `yaml:"email"`
	SMS        SMSConfig        `yaml:"sms"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Verbose    bool             `yaml:"-"` // set via CLI flag
}

// DatabaseConfig contains SQLite settings for alert configuration and the
// audit log.
type DatabaseConfig struct {
	Path string `yaml:"path"` // database file path (default: data/pulseboard.db)
}

// RecordsConfig contains ClickHouse settings for signal-set records.
type RecordsConfig struct {
	Addresses     []string `yaml:"addresses"`      // host:port list (default: localhost:9000)
	Database      string   `yaml:"database"`       // database name (default: pulseboard)
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	Compression   bool     `yaml:"compression"`    // enable LZ4
	RetentionDays int      `yaml:"retention_days"` // record TTL in days (default: 90)
}

// AlertingConfig contains engine tuning.
type AlertingConfig struct {
	WindowSize    int           `yaml:"window_size"`    // records per condition evaluation (default: 10)
	MaxRecipients int           `yaml:"max_recipients"` // per-channel cap per notification (default: 100)
	PollInterval  time.Duration `yaml:"poll_interval"`  // record watcher cadence (default: 10s)
	RateLimit     int           `yaml:"rate_limit"`     // notifications per minute, 0 = default
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // 465 for implicit TLS, 587 for STARTTLS
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMSConfig contains AWS SNS settings.
type SMSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SenderID        string `yaml:"sender_id"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // listen address (default: :9090)
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/pulseboard.db"
	}
	if len(c.Records.Addresses) == 0 {
		c.Records.Addresses = []string{"localhost:9000"}
	}
	if c.Records.Database == "" {
		c.Records.Database = "pulseboard"
	}
	if c.Records.RetentionDays == 0 {
		c.Records.RetentionDays = 90
	}
	if c.Alerting.WindowSize == 0 {
		c.Alerting.WindowSize = 10
	}
	if c.Alerting.MaxRecipients == 0 {
		c.Alerting.MaxRecipients = 100
	}
	if c.Alerting.PollInterval == 0 {
		c.Alerting.PollInterval = 10 * time.Second
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Alerting.WindowSize < 1 {
		return fmt.Errorf("alerting.window_size must be positive")
	}
	if c.Alerting.PollInterval < time.Second {
		return fmt.Errorf("alerting.poll_interval must be at least 1s")
	}
	if c.Email.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("email.host is required when email is enabled")
		}
		if c.Email.Port == 0 {
			return fmt.Errorf("email.port is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
	}
	if c.SMS.Enabled && c.SMS.Region == "" {
		return fmt.Errorf("sms.region is required when sms is enabled")
	}
	return nil
}
