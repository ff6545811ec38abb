// Package config loads process-level settings: env vars with defaults, with
// an optional YAML file override for deployments that ship a config file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the API process settings. Scoring/escalation policy lives in
// the database (algorithm_configs), not here.
type Config struct {
	DatabaseURL     string
	Port            string
	SessionSecret   string
	NotifyBaseURL   string
	SweepInterval   time.Duration
	AllowedOrigins  []string
	QueueMaxWorkers int
}

// fileConfig is the YAML shape. Pointer fields distinguish "absent" from
// "zero"; durations arrive as strings like "5m".
type fileConfig struct {
	DatabaseURL     *string  `yaml:"database_url"`
	Port            *string  `yaml:"port"`
	SessionSecret   *string  `yaml:"session_secret"`
	NotifyBaseURL   *string  `yaml:"notify_base_url"`
	SweepInterval   *string  `yaml:"sweep_interval"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	QueueMaxWorkers *int     `yaml:"queue_max_workers"`
}

// Load reads env vars, applies defaults, and merges an optional YAML file
// named by CONFIG_FILE on top.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Port:            getenv("PORT", "8080"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		NotifyBaseURL:   os.Getenv("NOTIFY_BASE_URL"),
		SweepInterval:   time.Minute,
		AllowedOrigins:  []string{"http://localhost:3000"},
		QueueMaxWorkers: 10,
	}
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse SWEEP_INTERVAL: %w", err)
		}
		cfg.SweepInterval = d
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.DatabaseURL != nil {
		c.DatabaseURL = *fc.DatabaseURL
	}
	if fc.Port != nil {
		c.Port = *fc.Port
	}
	if fc.SessionSecret != nil {
		c.SessionSecret = *fc.SessionSecret
	}
	if fc.NotifyBaseURL != nil {
		c.NotifyBaseURL = *fc.NotifyBaseURL
	}
	if fc.SweepInterval != nil {
		d, err := time.ParseDuration(*fc.SweepInterval)
		if err != nil {
			return fmt.Errorf("parse sweep_interval in %s: %w", path, err)
		}
		c.SweepInterval = d
	}
	if fc.AllowedOrigins != nil {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.QueueMaxWorkers != nil {
		c.QueueMaxWorkers = *fc.QueueMaxWorkers
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
