package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider configures one LLM backend. The API key is read from the
// environment variable named by APIKeyEnv, never from the file itself.
type Provider struct {
	Enabled   bool     `yaml:"enabled"`
	APIKeyEnv string   `yaml:"api_key_env"`
	BaseURL   string   `yaml:"base_url"`
	Models    []string `yaml:"models"`
}

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Quiz struct {
		Award           int    `yaml:"award"`            // points per correct answer
		Freshness       string `yaml:"freshness"`        // hydration window
		Cooldown        string `yaml:"cooldown"`         // min interval between publishes per channel
		LeaderboardSize int    `yaml:"leaderboard_size"` // broadcast size
	} `yaml:"quiz"`
	Schedule struct {
		Cron     string `yaml:"cron"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`
	Generator struct {
		Timeout     string              `yaml:"timeout"`
		MaxRetries  int                 `yaml:"max_retries"`
		Temperature float64             `yaml:"temperature"`
		MaxTokens   int                 `yaml:"max_tokens"`
		Topics      []string            `yaml:"topics"`
		Weights     map[string]int      `yaml:"difficulty_weights"`
		Providers   map[string]Provider `yaml:"providers"`
		Prompts     struct {
			System       string `yaml:"system"`
			UserTemplate string `yaml:"user_template"`
		} `yaml:"prompts"`
	} `yaml:"generator"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or
// malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is zero.
func IntOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
