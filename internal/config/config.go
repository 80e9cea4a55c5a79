// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/briangreenhill/wooadmin/cache"
)

// Config holds all application configuration
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	BaseURL       string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Dev           bool   `env:"DEV"`
	SessionSecret string `env:"SESSION_SECRET"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	Woo   WooConfig   `envPrefix:"WOOCOMMERCE_"`
	Cache CacheConfig `envPrefix:"CACHE_"`
	OAuth OAuthConfig `envPrefix:"OAUTH_"`
}

// WooConfig holds the store connection
type WooConfig struct {
	URL            string        `env:"URL"`
	ConsumerKey    string        `env:"CONSUMER_KEY"`
	ConsumerSecret string        `env:"CONSUMER_SECRET"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"20s"`
	RateLimit      float64       `env:"RATE_LIMIT" envDefault:"5"` // requests per second, 0 disables
}

// CacheConfig selects and sizes the response cache backend
type CacheConfig struct {
	Backend     string `env:"BACKEND" envDefault:"memory"` // memory, file, redis, postgres, sqlite
	Prefix      string `env:"PREFIX" envDefault:"woocommerce_cache_"`
	DefaultTTL  string `env:"DEFAULT_TTL" envDefault:"medium"`
	QuotaBytes  int64  `env:"QUOTA_BYTES" envDefault:"5242880"`
	Dir         string `env:"DIR"`
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"`
}

// OAuthConfig holds the admin login provider
type OAuthConfig struct {
	ClientID      string   `env:"CLIENT_ID"`
	ClientSecret  string   `env:"CLIENT_SECRET"`
	AuthURL       string   `env:"AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/auth"`
	TokenURL      string   `env:"TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	UserInfoURL   string   `env:"USERINFO_URL" envDefault:"https://openidconnect.googleapis.com/v1/userinfo"`
	AllowedEmails []string `env:"ALLOWED_EMAILS" envSeparator:","`
}

// Load reads a .env file when one exists, then the environment. Variables
// already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// HasWoo returns true if the store connection is complete
func (c *Config) HasWoo() bool {
	return c.Woo.URL != "" && c.Woo.ConsumerKey != "" && c.Woo.ConsumerSecret != ""
}

// HasOAuth returns true if admin login is configured
func (c *Config) HasOAuth() bool {
	return c.OAuth.ClientID != "" && c.OAuth.ClientSecret != ""
}

// CacheTTL resolves the configured default TTL
func (c *Config) CacheTTL() (time.Duration, error) {
	return cache.ParseTTL(c.Cache.DefaultTTL)
}

// AllowsEmail reports whether email may sign in. An empty list allows
// nobody.
func (c *Config) AllowsEmail(email string) bool {
	for _, allowed := range c.OAuth.AllowedEmails {
		if strings.EqualFold(strings.TrimSpace(allowed), email) {
			return true
		}
	}
	return false
}

// Validate checks the settings every binary depends on
func (c *Config) Validate() error {
	if !c.HasWoo() {
		return fmt.Errorf("WooCommerce store not configured - set WOOCOMMERCE_URL, WOOCOMMERCE_CONSUMER_KEY and WOOCOMMERCE_CONSUMER_SECRET")
	}
	if _, err := c.CacheTTL(); err != nil {
		return fmt.Errorf("CACHE_DEFAULT_TTL: %w", err)
	}
	switch c.Cache.Backend {
	case "memory", "file", "sqlite":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("CACHE_REDIS_URL is required for the redis backend")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return fmt.Errorf("CACHE_DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.Cache.QuotaBytes < 0 {
		return fmt.Errorf("CACHE_QUOTA_BYTES must not be negative")
	}
	return nil
}

// ValidateServer additionally checks what the HTTP API needs
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	if !c.HasOAuth() {
		return fmt.Errorf("OAuth not configured - set OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET")
	}
	return nil
}
