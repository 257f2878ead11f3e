package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProd = "PROD"
	EnvDev  = "DEV"

	// CookieName is both the auth cookie and the response header name.
	CookieName = "dvsa-auth"
)

// Config is read once at startup and treated as immutable.
type Config struct {
	Env string

	// Token signing
	JWTSecret string
	JWTIssuer string

	// Database
	DatabaseURL string

	// Server
	Port string

	// Session
	SessionDuration time.Duration

	// Cookie
	CookieDomain string
}

// Load reads the configuration from the environment. In DEV the env
// file (ENV_FILE, default .env) is loaded first; variables already set
// in the process environment are never overwritten.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.ToUpper(getEnvString("ENV", EnvDev))
	if cfg.Env != EnvProd && cfg.Env != EnvDev {
		return nil, fmt.Errorf("ENV must be %s or %s, got %q", EnvProd, EnvDev, cfg.Env)
	}

	if cfg.Env == EnvDev {
		file := getEnvString("ENV_FILE", ".env")
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	var missing []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "dvsa")
	cfg.Port = getEnvString("PORT", "1888")
	cfg.SessionDuration = getEnvDuration("SESSION_DURATION", 48*time.Hour)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

func (c *Config) GetSigningKey() string {
	return c.JWTSecret
}

func (c *Config) GetIssuer() string {
	return c.JWTIssuer
}

func (c *Config) GetContextKey() string {
	return CookieName
}

func (c *Config) GetSessionDuration() time.Duration {
	return c.SessionDuration
}

// GetCookieSecure marks cookies Secure in production only.
func (c *Config) GetCookieSecure() bool {
	return c.IsProd()
}

func (c *Config) GetCookieDomain() string {
	return c.CookieDomain
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
