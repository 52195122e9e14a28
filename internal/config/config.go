// Package config loads service settings from an optional YAML file and the
// environment. Environment variables always win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Port             string        `yaml:"port"`
	LogLevel         string        `yaml:"log_level"`
	Production       bool          `yaml:"production"`
	DatabaseURL      string        `yaml:"database_url"`
	HistoryRetention time.Duration `yaml:"history_retention"`
	CheckPerMinute   int           `yaml:"check_rate_per_minute"`
	Model            Model         `yaml:"model"`
	Review           Review        `yaml:"review"`
	TLS              TLS           `yaml:"tls"`
}

// Model configures the remote statistical classifier. An empty URL disables it.
type Model struct {
	URL          string        `yaml:"url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	TokenURL     string        `yaml:"token_url"`
	Scopes       []string      `yaml:"scopes"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Review configures the Bedrock second-opinion stage.
type Review struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	Model   string `yaml:"model"`
}

// TLS configures automatic certificates. No domains means plain HTTP.
type TLS struct {
	Domains []string `yaml:"domains"`
	Email   string   `yaml:"email"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:             "8080",
		LogLevel:         "info",
		HistoryRetention: 30 * 24 * time.Hour,
		CheckPerMinute:   30,
		Model: Model{
			Timeout: 15 * time.Second,
		},
		Review: Review{
			Region: "eu-west-1",
			Model:  "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// LUREWATCH_CONFIG (if any), then environment overrides.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("LUREWATCH_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Model.URL, "MODEL_URL")
	setString(&cfg.Model.ClientID, "MODEL_CLIENT_ID")
	setString(&cfg.Model.ClientSecret, "MODEL_CLIENT_SECRET")
	setString(&cfg.Model.TokenURL, "MODEL_TOKEN_URL")
	setString(&cfg.Review.Region, "AWS_REGION")
	setString(&cfg.Review.Model, "BEDROCK_MODEL")
	setString(&cfg.TLS.Email, "ACME_EMAIL")

	if v := os.Getenv("LUREWATCH_ENV"); v != "" {
		cfg.Production = v == "production"
	}
	if v := os.Getenv("TLS_DOMAINS"); v != "" {
		cfg.TLS.Domains = splitList(v)
	}
	if v := os.Getenv("MODEL_SCOPES"); v != "" {
		cfg.Model.Scopes = splitList(v)
	}
	if v := os.Getenv("REVIEW_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REVIEW_ENABLED: %w", err)
		}
		cfg.Review.Enabled = b
	}
	if v := os.Getenv("HISTORY_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HISTORY_RETENTION: %w", err)
		}
		cfg.HistoryRetention = d
	}
	if v := os.Getenv("MODEL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MODEL_TIMEOUT: %w", err)
		}
		cfg.Model.Timeout = d
	}
	if v := os.Getenv("CHECK_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHECK_RATE_PER_MINUTE: %w", err)
		}
		cfg.CheckPerMinute = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.CheckPerMinute <= 0 {
		return fmt.Errorf("check rate must be positive, got %d", c.CheckPerMinute)
	}
	if c.Model.ClientID != "" && c.Model.TokenURL == "" {
		return fmt.Errorf("model client id set without a token url")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
