package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the prefix for all environment variables, e.g.
// YOTEIBOT_LINE_CHANNEL_SECRET.
const envPrefix = "yoteibot"

// Config holds the configuration for the bot. Values are parsed from
// YOTEIBOT_-prefixed environment variables, optionally loaded from a .env
// file first.
type Config struct {
	// HTTP server
	Port     int    `envconfig:"PORT" default:"3000"`
	BaseURL  string `envconfig:"BASE_URL" default:""`
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Tokyo"`

	// LINE Messaging API
	LINEChannelSecret      string `envconfig:"LINE_CHANNEL_SECRET"`
	LINEChannelAccessToken string `envconfig:"LINE_CHANNEL_ACCESS_TOKEN"`

	// Google OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:""`

	// OpenAI interpretation
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Credential store
	DBPath string `envconfig:"DB_PATH" default:"data/yoteibot.db"`

	// Observability
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9090"`
	Debug          bool   `envconfig:"DEBUG" default:"false"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; missing files are not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.GoogleRedirectURL == "" && cfg.BaseURL != "" {
		cfg.GoogleRedirectURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/auth/google/callback"
	}

	return &cfg, nil
}

// Validate checks that the credentials required at runtime are present.
func (c *Config) Validate() error {
	var missing []string
	if c.LINEChannelAccessToken == "" {
		missing = append(missing, "YOTEIBOT_LINE_CHANNEL_ACCESS_TOKEN")
	}
	if c.LINEChannelSecret == "" {
		missing = append(missing, "YOTEIBOT_LINE_CHANNEL_SECRET")
	}
	if c.GoogleClientID == "" {
		missing = append(missing, "YOTEIBOT_GOOGLE_CLIENT_ID")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "YOTEIBOT_GOOGLE_CLIENT_SECRET")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "YOTEIBOT_OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone. Call Validate first; an
// unparseable zone falls back to UTC here.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
