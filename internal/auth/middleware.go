package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/alexjbarnes/todoist-mcp/internal/logging"
	"github.com/alexjbarnes/todoist-mcp/internal/metrics"
)

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxClientID
	ctxRemoteIP
)

// RequestUserID returns the authenticated user ID from the context, or "".
func RequestUserID(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

// RequestClientID returns the OAuth client ID from the context, or "".
func RequestClientID(ctx context.Context) string {
	v, _ := ctx.Value(ctxClientID).(string)
	return v
}

// RequestRemoteIP returns the client IP from the context, or "".
func RequestRemoteIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxRemoteIP).(string)
	return v
}

// WithIdentity returns ctx carrying an authenticated identity.
func WithIdentity(ctx context.Context, userID, clientID string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxClientID, clientID)
}

// challengeBody tells an unauthenticated client where to get a token.
type challengeBody struct {
	Error                 string `json:"error"`
	ErrorDescription      string `json:"error_description"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	RegistrationEndpoint  string `json:"registration_endpoint"`
	ResourceMetadata      string `json:"resource_metadata"`
}

// Middleware returns HTTP middleware that validates Bearer tokens.
// Unauthenticated requests get a 401 with the WWW-Authenticate header
// pointing to the protected resource metadata URL (RFC 9728 Section 5.1)
// and a JSON body naming the OAuth endpoints.
func Middleware(store *Store, logger *slog.Logger, m *metrics.Metrics, serverURL string) func(http.Handler) http.Handler {
	metadataURL := serverURL + "/.well-known/oauth-protected-resource"
	// RFC 6750 Section 3.1: no error attribute when no token was provided.
	wwwAuthNoToken := fmt.Sprintf(`Bearer resource_metadata="%s"`, metadataURL)
	wwwAuthInvalid := fmt.Sprintf(`Bearer error="invalid_token", resource_metadata="%s"`, metadataURL)

	challenge := func(w http.ResponseWriter, header, errCode, description string) {
		w.Header().Set("WWW-Authenticate", header)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(challengeBody{
			Error:                 errCode,
			ErrorDescription:      description,
			AuthorizationEndpoint: serverURL + "/oauth/authorize",
			TokenEndpoint:         serverURL + "/oauth/token",
			RegistrationEndpoint:  serverURL + "/oauth/register",
			ResourceMetadata:      metadataURL,
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			// RFC 6750 Section 2.1: the scheme is case-insensitive.
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				logger.Debug("middleware: no bearer token",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				m.BearerCheck("missing")
				challenge(w, wwwAuthNoToken, "unauthorized", "bearer token required")

				return
			}

			ti := store.ValidateToken(strings.TrimSpace(token))
			if ti == nil {
				logger.Debug("middleware: invalid bearer token",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				m.BearerCheck("invalid")
				challenge(w, wwwAuthInvalid, "invalid_token", "bearer token is invalid or expired")

				return
			}

			if ti.Preshared {
				m.BearerCheck("preshared")
			} else {
				m.BearerCheck("issued")
			}

			logger.Debug("middleware: authenticated",
				logging.User(ti.UserID),
				slog.String(logging.KeyClientID, ti.ClientID),
				slog.String("ip", ip),
			)

			// Inject authenticated identity into the request context
			// so downstream handlers (MCP tools) can log it.
			ctx := WithIdentity(r.Context(), ti.UserID, ti.ClientID)
			ctx = context.WithValue(ctx, ctxRemoteIP, ip)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
