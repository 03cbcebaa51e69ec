package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret = "change-me-jwt-secret"
	minVaultKeyLen   = 32
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"safepath.db"`

	JWTSecret     string        `env:"JWT_SECRET" envDefault:"change-me-jwt-secret"`
	JWTAccessTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	VaultMasterKey  string        `env:"VAULT_MASTER_KEY"`
	VaultStaleAfter time.Duration `env:"VAULT_STALE_AFTER" envDefault:"1h"`

	GitHubAPIURL    string        `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	GitHubUserAgent string        `env:"GITHUB_USER_AGENT" envDefault:"SafePath-App"`
	GitHubTimeout   time.Duration `env:"GITHUB_TIMEOUT" envDefault:"10s"`

	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite string `env:"COOKIE_SAMESITE" envDefault:"Lax"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/api/v1/auth"`

	MailerEnabled bool   `env:"DEV_MAILER_ENABLED" envDefault:"true"`
	ResetURLBase  string `env:"RESET_URL_BASE" envDefault:"http://localhost:5173"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.CookiePath = strings.TrimSpace(cfg.CookiePath)
	cfg.CookieSameSite = strings.TrimSpace(cfg.CookieSameSite)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be > 0")
	}
	if cfg.VaultStaleAfter <= 0 {
		return fmt.Errorf("VAULT_STALE_AFTER must be > 0")
	}
	if cfg.GitHubTimeout <= 0 {
		return fmt.Errorf("GITHUB_TIMEOUT must be > 0")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if len(cfg.VaultMasterKey) < minVaultKeyLen {
		return fmt.Errorf("VAULT_MASTER_KEY must be set and at least %d characters", minVaultKeyLen)
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}

	if cfg.IsProdLike() {
		if cfg.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}
	return nil
}

func (c *Config) IsProdLike() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production" || c.AppEnv == "release"
}
