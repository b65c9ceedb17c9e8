package auth

import (
	"encoding/json"
	"net/http"
)

// ProtectedResourceMetadata is the RFC 9728 response.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// ServerMetadata is the RFC 8414 response.
type ServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// Manifest describes the MCP server for discovery clients.
type Manifest struct {
	Name          string                `json:"name"`
	Version       string                `json:"version"`
	Description   string                `json:"description,omitempty"`
	Transport     ManifestTransport     `json:"transport"`
	Authorization ManifestAuthorization `json:"authorization"`
	Tools         []string              `json:"tools"`
}

// ManifestTransport names the MCP endpoint.
type ManifestTransport struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ManifestAuthorization names the OAuth endpoints.
type ManifestAuthorization struct {
	Type                  string   `json:"type"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	RegistrationEndpoint  string   `json:"registration_endpoint"`
	ScopesSupported       []string `json:"scopes_supported"`
}

// HandleProtectedResourceMetadata returns the /.well-known/oauth-protected-resource handler.
func HandleProtectedResourceMetadata(serverURL string) http.HandlerFunc {
	return serveJSON(ProtectedResourceMetadata{
		Resource:               serverURL,
		AuthorizationServers:   []string{serverURL},
		ScopesSupported:        AllowedScopes,
		BearerMethodsSupported: []string{"header"},
	})
}

// HandleServerMetadata returns the /.well-known/oauth-authorization-server handler.
func HandleServerMetadata(serverURL string) http.HandlerFunc {
	return serveJSON(ServerMetadata{
		Issuer:                            serverURL,
		AuthorizationEndpoint:             serverURL + "/oauth/authorize",
		TokenEndpoint:                     serverURL + "/oauth/token",
		RegistrationEndpoint:              serverURL + "/oauth/register",
		ScopesSupported:                   AllowedScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"none"},
	})
}

// HandleManifest returns the /.well-known/mcp/manifest.json handler.
// Endpoint fields are filled from serverURL.
func HandleManifest(serverURL string, m Manifest) http.HandlerFunc {
	m.Transport = ManifestTransport{Type: "streamable-http", URL: serverURL + "/mcp"}
	m.Authorization = ManifestAuthorization{
		Type:                  "oauth2",
		AuthorizationEndpoint: serverURL + "/oauth/authorize",
		TokenEndpoint:         serverURL + "/oauth/token",
		RegistrationEndpoint:  serverURL + "/oauth/register",
		ScopesSupported:       AllowedScopes,
	}

	return serveJSON(m)
}

func serveJSON(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(v)
	}
}
