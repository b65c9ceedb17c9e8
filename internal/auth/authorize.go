package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/alexjbarnes/todoist-mcp/internal/logging"
	"github.com/alexjbarnes/todoist-mcp/internal/models"
)

const (
	// relayStateBytes is the number of random bytes in a relay state
	// token (hex-encoded to twice this length).
	relayStateBytes = 16

	// authCodeBytes is the number of random bytes used to generate
	// an authorization code.
	authCodeBytes = 32

	// accessTokenBytes is the number of random bytes in an access token.
	accessTokenBytes = 32
)

var (
	errUnknownClient    = errors.New("unknown client_id")
	errClientsExhausted = errors.New("client registration limit reached")
)

// FlowConfig controls the browser-facing authorization endpoints.
type FlowConfig struct {
	// ServerURL is the issuer identifier added to client redirects
	// (RFC 9207).
	ServerURL string
	// AutoRegister lets /oauth/authorize accept an unknown client_id
	// that presents a valid absolute redirect_uri.
	AutoRegister bool
	// AllowedLogins restricts which provider logins may be issued
	// codes or tokens. Empty allows all.
	AllowedLogins []string
}

// Flow serves /oauth/authorize, /login and the provider callback.
type Flow struct {
	store    *Store
	provider IdentityProvider
	logger   *slog.Logger
	cfg      FlowConfig
}

// NewFlow creates the authorization flow handlers.
func NewFlow(store *Store, provider IdentityProvider, logger *slog.Logger, cfg FlowConfig) *Flow {
	return &Flow{store: store, provider: provider, logger: logger, cfg: cfg}
}

// HandleAuthorize returns the /oauth/authorize handler. Validation
// errors are returned as JSON rather than redirected, since the
// redirect URI is not trusted until the client is resolved.
func (f *Flow) HandleAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()

		// RFC 6749 Section 4.1.1: response_type is REQUIRED and must be "code".
		switch responseType := q.Get("response_type"); responseType {
		case "code":
		case "":
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "response_type is required")
			return
		default:
			writeJSONError(w, http.StatusBadRequest, "unsupported_response_type", `response_type must be "code"`)
			return
		}

		clientID := q.Get("client_id")
		redirectURI := q.Get("redirect_uri")
		state := q.Get("state")
		codeChallenge := q.Get("code_challenge")

		for _, p := range []struct{ name, value string }{
			{"client_id", clientID},
			{"redirect_uri", redirectURI},
			{"state", state},
			{"code_challenge", codeChallenge},
		} {
			if p.value == "" {
				writeJSONError(w, http.StatusBadRequest, "invalid_request", p.name+" is required")
				return
			}
		}

		if q.Get("code_challenge_method") != "S256" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "code_challenge_method must be S256")
			return
		}

		if !isAbsoluteURI(redirectURI) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "redirect_uri must be an absolute URI")
			return
		}

		requested := parseScope(q.Get("scope"))
		if !subset(requested, AllowedScopes) {
			writeJSONError(w, http.StatusBadRequest, "invalid_scope", "requested scope is not supported")
			return
		}

		client, err := f.resolveClient(clientID, redirectURI, requested)
		switch {
		case errors.Is(err, errUnknownClient):
			writeJSONError(w, http.StatusBadRequest, "unauthorized_client", "unknown client_id")
			return
		case err != nil:
			writeJSONError(w, http.StatusServiceUnavailable, "temporarily_unavailable", err.Error())
			return
		}

		if !validateRedirectURI(client, redirectURI) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "redirect_uri not registered for this client")
			return
		}

		scopes := requested
		if len(scopes) == 0 {
			scopes = slices.Clone(client.Scopes)
		}

		if !subset(scopes, client.Scopes) {
			writeJSONError(w, http.StatusBadRequest, "invalid_scope", "requested scope exceeds client scope")
			return
		}

		relay := RandomHex(relayStateBytes)
		f.store.SavePending(relay, &PendingState{
			Kind:                PendingRelay,
			ClientID:            client.ClientID,
			RedirectURI:         redirectURI,
			CodeChallenge:       codeChallenge,
			CodeChallengeMethod: "S256",
			Scopes:              scopes,
			OriginalState:       state,
		})

		f.logger.Debug("authorization relayed to identity provider",
			slog.String(logging.KeyClientID, client.ClientID),
			slog.String("scope", joinScopes(scopes)),
		)

		http.Redirect(w, r, f.provider.AuthCodeURL(relay), http.StatusFound)
	}
}

// resolveClient returns the registered client, auto-registering it
// when enabled. This is the only place clients are created outside
// /oauth/register.
func (f *Flow) resolveClient(clientID, redirectURI string, requested []string) (*models.OAuthClient, error) {
	if client := f.store.GetClient(clientID); client != nil {
		return client, nil
	}

	if !f.cfg.AutoRegister {
		return nil, errUnknownClient
	}

	client := &models.OAuthClient{
		ClientID:                clientID,
		RedirectURIs:            []string{redirectURI},
		Scopes:                  sanitizeScopes(joinScopes(requested)),
		TokenEndpointAuthMethod: "none",
		RegistrationAccessToken: RandomHex(32),
		AutoRegistered:          true,
	}

	if !f.store.RegisterClient(client) {
		return nil, errClientsExhausted
	}

	f.logger.Info("client auto-registered",
		slog.String(logging.KeyClientID, clientID),
		slog.String("redirect_uri", redirectURI),
	)

	return client, nil
}

// HandleLogin returns the /login handler, which starts the manual flow
// for a human who wants a long-lived API token.
func (f *Flow) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		relay := RandomHex(relayStateBytes)
		f.store.SavePending(relay, &PendingState{
			Kind:   PendingManual,
			Scopes: sanitizeScopes(r.URL.Query().Get("scope")),
		})

		http.Redirect(w, r, f.provider.AuthCodeURL(relay), http.StatusFound)
	}
}

// validateRedirectURI checks that redirectURI matches one of the client's
// registered redirect_uris. Exact match is required, except that a
// registered loopback URI accepts any port (RFC 8252 Section 7.3).
func validateRedirectURI(client *models.OAuthClient, redirectURI string) bool {
	for _, registered := range client.RedirectURIs {
		if redirectURI == registered {
			return true
		}

		if isLoopbackRedirect(redirectURI, registered) {
			return true
		}
	}

	return false
}

// isLoopbackHost returns true if the hostname is a loopback address.
func isLoopbackHost(host string) bool {
	return host == "127.0.0.1" || host == "localhost" || host == "::1"
}

// isLoopbackRedirect reports whether redirectURI and registered are the
// same http loopback URI apart from the port. Hostnames are compared
// after parsing so 127.0.0.1.evil.com does not match 127.0.0.1.
func isLoopbackRedirect(redirectURI, registered string) bool {
	ru, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}

	pu, err := url.Parse(registered)
	if err != nil {
		return false
	}

	return ru.Scheme == "http" && pu.Scheme == "http" &&
		isLoopbackHost(pu.Hostname()) &&
		ru.Hostname() == pu.Hostname() &&
		ru.Path == pu.Path
}

// appendQuery adds params to uri, keeping any existing query
// (RFC 6749 Section 4.1.2).
func appendQuery(uri string, params url.Values) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}

	return uri + sep + params.Encode()
}

// redirectWithError redirects the user-agent back to the client with an
// error response per RFC 6749 Section 4.1.2.1. This must only be called
// with a redirect URI recovered from a validated pending state.
func redirectWithError(w http.ResponseWriter, r *http.Request, redirectURI, state, errCode, description string) {
	params := url.Values{}
	params.Set("error", errCode)
	params.Set("error_description", description)

	if state != "" {
		params.Set("state", state)
	}

	http.Redirect(w, r, appendQuery(redirectURI, params), http.StatusFound)
}
