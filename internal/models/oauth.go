// Package models defines types shared across internal packages.
package models

import "time"

// OAuthToken represents an issued access token. A zero ExpiresAt never
// expires. Preshared marks the synthetic identity of an allow-listed
// token and is never set on issued tokens.
type OAuthToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Preshared bool      `json:"-"`
}

// Expired reports whether the token has an expiry that is before now.
func (t *OAuthToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// OAuthClient represents a registered OAuth client. Only public
// clients (token_endpoint_auth_method "none") are supported.
type OAuthClient struct {
	ClientID                string    `json:"client_id"`
	ClientName              string    `json:"client_name,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	Scopes                  []string  `json:"scopes"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	IssuedAt                time.Time `json:"issued_at"`
	RegistrationAccessToken string    `json:"-"`
	AutoRegistered          bool      `json:"auto_registered,omitempty"`
}
