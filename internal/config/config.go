package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Sync     SyncConfig     `yaml:"sync"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourceConfig holds content-service credentials and paging.
type SourceConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserAgent    string `yaml:"user_agent"`
	Limit        int    `yaml:"limit"`
}

// SyncConfig tunes the ingestion pipeline.
type SyncConfig struct {
	BatchSize   int `yaml:"batch_size"`
	Workers     int `yaml:"workers"`
	MaxAttempts int `yaml:"max_attempts"`

	// Communities seeds the database on first sync.
	Communities []string `yaml:"communities"`
}

// ScheduleConfig configures the daemon's periodic sync.
type ScheduleConfig struct {
	Cron        string `yaml:"cron"`
	SyncOnStart bool   `yaml:"sync_on_start"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./gallerysync.db"},
		Source: SourceConfig{
			UserAgent: "gallerysync/1.0",
			Limit:     100,
		},
		Sync: SyncConfig{
			BatchSize:   20,
			Workers:     8,
			MaxAttempts: 5,
		},
		Schedule: ScheduleConfig{
			Cron:        "0 */6 * * *",
			SyncOnStart: true,
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GALLERYSYNC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Source.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Source.ClientSecret = v
	}
	if v := os.Getenv("REDDIT_USER_AGENT"); v != "" {
		cfg.Source.UserAgent = v
	}
}
