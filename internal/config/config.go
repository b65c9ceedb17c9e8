package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for todoist-mcp.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	// HTTP listener and the externally reachable base URL used in
	// OAuth metadata and redirects.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	ServerURL  string `env:"SERVER_URL"`

	// Todoist API access shared by all authenticated callers.
	TodoistToken   string        `env:"TODOIST_API_TOKEN"`
	TodoistBaseURL string        `env:"TODOIST_BASE_URL" envDefault:"https://api.todoist.com"`
	TodoistTimeout time.Duration `env:"TODOIST_TIMEOUT" envDefault:"15s"`

	// Upstream identity provider that end users log in with.
	ProviderClientID     string        `env:"OAUTH_PROVIDER_CLIENT_ID"`
	ProviderClientSecret string        `env:"OAUTH_PROVIDER_CLIENT_SECRET"`
	ProviderAuthURL      string        `env:"OAUTH_PROVIDER_AUTH_URL" envDefault:"https://github.com/login/oauth/authorize"`
	ProviderTokenURL     string        `env:"OAUTH_PROVIDER_TOKEN_URL" envDefault:"https://github.com/login/oauth/access_token"`
	ProviderUserInfoURL  string        `env:"OAUTH_PROVIDER_USERINFO_URL" envDefault:"https://api.github.com/user"`
	ProviderLoginPath    string        `env:"OAUTH_PROVIDER_LOGIN_PATH" envDefault:"login"`
	ProviderScopes       []string      `env:"OAUTH_PROVIDER_SCOPES" envSeparator:"," envDefault:"read:user"`
	ProviderTimeout      time.Duration `env:"OAUTH_PROVIDER_TIMEOUT" envDefault:"10s"`

	// CallbackURL is registered with the identity provider. Defaults to
	// SERVER_URL + "/callback".
	CallbackURL string `env:"OAUTH_CALLBACK_URL"`

	// AutoRegister lets /oauth/authorize accept unknown client IDs that
	// present a valid redirect URI.
	AutoRegister bool `env:"OAUTH_AUTO_REGISTER" envDefault:"true"`

	// AllowedLogins restricts which identity-provider accounts may
	// obtain tokens. Empty allows any account.
	AllowedLogins []string `env:"ALLOWED_LOGINS" envSeparator:","`

	// Pre-shared bearer tokens, inline and/or from a watched file.
	BearerTokens     []string `env:"MCP_BEARER_TOKENS" envSeparator:","`
	BearerTokensFile string   `env:"MCP_BEARER_TOKENS_FILE"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the Todoist token to other users.
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

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	cfg.BearerTokens = trimAll(cfg.BearerTokens)
	cfg.AllowedLogins = trimAll(cfg.AllowedLogins)
	cfg.ProviderScopes = trimAll(cfg.ProviderScopes)

	if cfg.CallbackURL == "" && cfg.ServerURL != "" {
		cfg.CallbackURL = cfg.ServerURL + "/callback"
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TodoistToken == "" {
		return fmt.Errorf("TODOIST_API_TOKEN is required")
	}

	if c.ServerURL == "" {
		return fmt.Errorf("SERVER_URL is required")
	}

	if err := absoluteURL("SERVER_URL", c.ServerURL); err != nil {
		return err
	}

	if err := absoluteURL("TODOIST_BASE_URL", c.TodoistBaseURL); err != nil {
		return err
	}

	if c.TodoistTimeout <= 0 {
		return fmt.Errorf("TODOIST_TIMEOUT must be positive")
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("OAUTH_PROVIDER_TIMEOUT must be positive")
	}

	// Without an identity provider the only way in is a pre-shared token.
	if c.ProviderClientID == "" || c.ProviderClientSecret == "" {
		if !c.HasBearerTokens() {
			return fmt.Errorf("either OAUTH_PROVIDER_CLIENT_ID and OAUTH_PROVIDER_CLIENT_SECRET, or MCP_BEARER_TOKENS / MCP_BEARER_TOKENS_FILE, must be set")
		}
	}

	if c.CallbackURL != "" {
		if err := absoluteURL("OAUTH_CALLBACK_URL", c.CallbackURL); err != nil {
			return err
		}
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasProvider reports whether the identity provider is configured.
func (c *Config) HasProvider() bool {
	return c.ProviderClientID != "" && c.ProviderClientSecret != ""
}

// HasBearerTokens reports whether any pre-shared token source is set.
func (c *Config) HasBearerTokens() bool {
	return len(c.BearerTokens) > 0 || c.BearerTokensFile != ""
}

// CallbackPath returns the path component of the callback URL, which
// is where the mux mounts the identity-provider callback handler.
func (c *Config) CallbackPath() string {
	u, err := url.Parse(c.CallbackURL)
	if err != nil || u.Path == "" {
		return "/callback"
	}

	return u.Path
}

func absoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}

	return nil
}

func trimAll(in []string) []string {
	out := in[:0]

	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
