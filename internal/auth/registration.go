package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alexjbarnes/todoist-mcp/internal/logging"
	"github.com/alexjbarnes/todoist-mcp/internal/models"
)

// maxRequestBody caps OAuth request bodies.
const maxRequestBody = 64 << 10

// registrationRequest is the DCR POST body (RFC 7591).
type registrationRequest struct {
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// registrationResponse is the DCR response.
type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RegistrationAccessToken string   `json:"registration_access_token"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope"`
}

// HandleRegistration returns the /oauth/register handler.
func HandleRegistration(store *Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

		var req registrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_client_metadata", "invalid request body")
			return
		}

		if len(req.RedirectURIs) == 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_redirect_uri", "redirect_uris is required")
			return
		}

		for _, uri := range req.RedirectURIs {
			if !isAbsoluteURI(uri) {
				writeJSONError(w, http.StatusBadRequest, "invalid_redirect_uri", "redirect_uris must be absolute URIs")
				return
			}
		}

		// Only public clients using PKCE are supported.
		if req.TokenEndpointAuthMethod != "" && req.TokenEndpointAuthMethod != "none" {
			writeJSONError(w, http.StatusBadRequest, "invalid_client_metadata", "unsupported token_endpoint_auth_method")
			return
		}

		client := &models.OAuthClient{
			ClientID:                RandomHex(16),
			ClientName:              req.ClientName,
			RedirectURIs:            req.RedirectURIs,
			Scopes:                  sanitizeScopes(req.Scope),
			TokenEndpointAuthMethod: "none",
			RegistrationAccessToken: RandomHex(32),
		}

		if !store.RegisterClient(client) {
			logger.Warn("client registration rejected, limit reached")
			writeJSONError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "client registration limit reached")

			return
		}

		logger.Info("client registered",
			slog.String(logging.KeyClientID, client.ClientID),
			slog.String("client_name", client.ClientName),
		)

		resp := registrationResponse{
			ClientID:                client.ClientID,
			ClientIDIssuedAt:        client.IssuedAt.Unix(),
			ClientSecretExpiresAt:   0,
			RegistrationAccessToken: client.RegistrationAccessToken,
			ClientName:              client.ClientName,
			RedirectURIs:            client.RedirectURIs,
			GrantTypes:              []string{"authorization_code"},
			ResponseTypes:           []string{"code"},
			TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
			Scope:                   joinScopes(client.Scopes),
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// isAbsoluteURI reports whether raw parses with both a scheme and a host.
func isAbsoluteURI(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func writeJSONError(w http.ResponseWriter, status int, errCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}
