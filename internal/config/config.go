package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for proppulse-auth.
type Config struct {
	// Environment controls log format and cookie security.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// PublicURL is the externally visible origin of this service. Reset
	// emails point back to PublicURL + /auth/reset-password.
	PublicURL string `env:"PUBLIC_URL"`

	// Identity provider connection.
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`

	// JWTSecret enables signature verification of access tokens handed
	// over in recovery links. Without it claims are decoded unverified
	// and the provider's /user endpoint is the only check.
	JWTSecret string `env:"SUPABASE_JWT_SECRET"`

	// LoginURL is where the user lands after a successful reset.
	LoginURL string `env:"LOGIN_URL" envDefault:"/auth/login"`

	// SettleDelay is waited before a recovery link is inspected.
	SettleDelay time.Duration `env:"RECOVERY_SETTLE_DELAY" envDefault:"500ms"`

	// SessionTTL caps how long a recovery session may stay open even if
	// the provider token lives longer.
	SessionTTL time.Duration `env:"RECOVERY_SESSION_TTL" envDefault:"15m"`

	// StateDBPath enables persistence of recovery sessions. Empty keeps
	// them in memory only.
	StateDBPath string `env:"STATE_DB_PATH"`

	// SiteSettingsFile points at a YAML branding file.
	SiteSettingsFile string `env:"SITE_SETTINGS_FILE"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the anon key and JWT secret.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StateDBPath != "" {
		absPath, err := filepath.Abs(cfg.StateDBPath)
		if err != nil {
			return nil, fmt.Errorf("resolving state db path: %w", err)
		}

		cfg.StateDBPath = absPath
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.PublicURL == "" {
		return fmt.Errorf("PUBLIC_URL is required")
	}

	if err := requireAbsoluteURL("PUBLIC_URL", c.PublicURL); err != nil {
		return err
	}

	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}

	if err := requireAbsoluteURL("SUPABASE_URL", c.SupabaseURL); err != nil {
		return err
	}

	if c.SupabaseAnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}

	if c.LoginURL == "" {
		return fmt.Errorf("LOGIN_URL must not be empty")
	}

	if c.SettleDelay < 0 {
		return fmt.Errorf("RECOVERY_SETTLE_DELAY must not be negative")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("RECOVERY_SESSION_TTL must be positive")
	}

	return nil
}

func requireAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL", name)
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ResetPasswordURL is the redirect target embedded in reset emails.
func (c *Config) ResetPasswordURL() string {
	return c.PublicURL + "/auth/reset-password"
}
