package auth

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/alexjbarnes/todoist-mcp/internal/logging"
	"github.com/alexjbarnes/todoist-mcp/internal/models"
)

// tokenPage shows a manually issued API token once.
var tokenPage = template.Must(template.New("token").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>todoist-mcp</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    background: #f5f5f5;
    color: #1a1a1a;
    display: flex;
    align-items: center;
    justify-content: center;
    min-height: 100vh;
  }
  .card {
    background: #fff;
    border: 1px solid #e0e0e0;
    border-radius: 8px;
    padding: 2.5rem 2rem;
    width: 100%;
    max-width: 520px;
    box-shadow: 0 1px 3px rgba(0,0,0,0.06);
  }
  .card h1 { font-size: 1.25rem; font-weight: 600; margin-bottom: 0.25rem; }
  .card p.sub { font-size: 0.85rem; color: #666; margin-bottom: 1.5rem; }
  code {
    display: block;
    background: #f8f9fa;
    border: 1px solid #e0e0e0;
    border-radius: 6px;
    padding: 0.6rem 0.75rem;
    font-size: 0.85rem;
    word-break: break-all;
  }
</style>
</head>
<body>
<div class="card">
  <h1>todoist-mcp</h1>
  <p class="sub">Signed in as {{.User}}. Use this bearer token for the MCP endpoint. It does not expire and is shown only once.</p>
  <code>{{.Token}}</code>
</div>
</body>
</html>`))

type tokenPageData struct {
	User  string
	Token string
}

// oauthErrorCode maps a provider's error parameter onto the RFC 6749
// Section 4.1.2.1 authorization error codes. Anything else becomes
// access_denied.
func oauthErrorCode(providerErr string) string {
	switch providerErr {
	case "invalid_request", "unauthorized_client", "access_denied",
		"unsupported_response_type", "invalid_scope", "server_error",
		"temporarily_unavailable":
		return providerErr
	default:
		return "access_denied"
	}
}

// HandleCallback returns the identity provider callback handler. The
// pending state is consumed before anything else so a replayed
// callback always fails.
func (f *Flow) HandleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()

		pending := f.store.ConsumePending(q.Get("state"))
		if pending == nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid state")
			return
		}

		fail := func(status int, errCode, description string) {
			if pending.Kind == PendingRelay {
				redirectWithError(w, r, pending.RedirectURI, pending.OriginalState, errCode, description)
				return
			}

			writeJSONError(w, status, errCode, description)
		}

		if providerErr := q.Get("error"); providerErr != "" {
			f.logger.Info("identity provider returned error",
				slog.String(logging.KeyError, providerErr),
				slog.String("description", q.Get("error_description")),
			)
			fail(http.StatusBadRequest, oauthErrorCode(providerErr), "identity provider denied the request")

			return
		}

		code := q.Get("code")
		if code == "" {
			fail(http.StatusBadRequest, "invalid_request", "code is required")
			return
		}

		login, err := f.provider.Identify(r.Context(), code)
		if err != nil {
			f.logger.Warn("identity provider exchange failed", logging.Err(err))
			fail(http.StatusBadGateway, "server_error", "identity provider exchange failed")

			return
		}

		if len(f.cfg.AllowedLogins) > 0 && !slices.Contains(f.cfg.AllowedLogins, login) {
			f.logger.Warn("login not allowed", logging.User(login))
			fail(http.StatusForbidden, "access_denied", "account is not allowed")

			return
		}

		now := f.store.now()

		if pending.Kind == PendingManual {
			token := RandomHex(accessTokenBytes)
			f.store.SaveToken(&models.OAuthToken{
				Token:     token,
				UserID:    login,
				Scopes:    pending.Scopes,
				CreatedAt: now,
			})

			f.logger.Info("manual token issued", logging.User(login))

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")

			if err := tokenPage.Execute(w, tokenPageData{User: login, Token: token}); err != nil {
				f.logger.Warn("rendering token page failed", logging.User(login), logging.Err(err))
			}

			return
		}

		code = RandomHex(authCodeBytes)
		f.store.SaveCode(&AuthCode{
			Code:                code,
			ClientID:            pending.ClientID,
			RedirectURI:         pending.RedirectURI,
			CodeChallenge:       pending.CodeChallenge,
			CodeChallengeMethod: pending.CodeChallengeMethod,
			UserID:              login,
			Scopes:              pending.Scopes,
			CreatedAt:           now,
			ExpiresAt:           now.Add(codeExpiry),
		})

		f.logger.Info("authorization code issued",
			logging.User(login),
			slog.String(logging.KeyClientID, pending.ClientID),
		)

		params := url.Values{}
		params.Set("code", code)
		params.Set("state", pending.OriginalState)

		// RFC 9207: include the issuer identifier to prevent mix-up attacks.
		if f.cfg.ServerURL != "" {
			params.Set("iss", f.cfg.ServerURL)
		}

		http.Redirect(w, r, appendQuery(pending.RedirectURI, params), http.StatusFound)
	}
}
