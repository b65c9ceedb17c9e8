package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// ErrNoLogin is returned when the provider's user info has no value at
// the configured login path.
var ErrNoLogin = errors.New("identity provider returned no login")

const defaultProviderTimeout = 10 * time.Second

// IdentityProvider is the upstream login the authorization flows
// relay through.
type IdentityProvider interface {
	// AuthCodeURL is where the user agent is sent to log in. The
	// provider echoes state back to the callback.
	AuthCodeURL(state string) string
	// Identify exchanges a callback code and returns the user's login.
	Identify(ctx context.Context, code string) (string, error)
}

// ProviderConfig describes a generic OAuth 2.0 identity provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	// LoginPath is a gjson path selecting the login from the user info
	// response, e.g. "login" for GitHub or "email" for OIDC providers.
	LoginPath   string
	Scopes      []string
	CallbackURL string
	// HTTPClient is used for the token exchange and user info calls.
	// Nil uses http.DefaultClient.
	HTTPClient *http.Client
	// Timeout bounds a whole Identify call. Zero means 10s.
	Timeout time.Duration
}

// OAuth2Provider implements IdentityProvider with golang.org/x/oauth2.
type OAuth2Provider struct {
	config      *oauth2.Config
	userInfoURL string
	loginPath   string
	httpClient  *http.Client
	timeout     time.Duration
}

// NewOAuth2Provider creates an identity provider from cfg.
func NewOAuth2Provider(cfg ProviderConfig) *OAuth2Provider {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "login"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	return &OAuth2Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes:      cfg.Scopes,
			RedirectURL: cfg.CallbackURL,
		},
		userInfoURL: cfg.UserInfoURL,
		loginPath:   loginPath,
		httpClient:  cfg.HTTPClient,
		timeout:     timeout,
	}
}

// AuthCodeURL returns the provider's authorize URL for state.
func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Identify exchanges code for a provider token and reads the login
// from the user info endpoint. Both calls share the provider timeout.
func (p *OAuth2Provider) Identify(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging provider code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("building user info request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client(ctx, tok).Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading user info: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user info: status %d", resp.StatusCode)
	}

	login := gjson.GetBytes(body, p.loginPath).String()
	if login == "" {
		return "", fmt.Errorf("%w at %q", ErrNoLogin, p.loginPath)
	}

	return login, nil
}
