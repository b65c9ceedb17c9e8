// Package server provides HTTP server construction for todoist-mcp.
package server

import (
	"log/slog"
	"net/http"

	"github.com/alexjbarnes/todoist-mcp/internal/auth"
	"github.com/alexjbarnes/todoist-mcp/internal/metrics"
)

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Store      *auth.Store
	MCPHandler http.Handler
	Logger     *slog.Logger
	ServerURL  string
	Manifest   auth.Manifest

	// Flow drives the interactive OAuth endpoints. Nil when no identity
	// provider is configured, leaving pre-shared tokens as the only way
	// in.
	Flow         *auth.Flow
	CallbackPath string

	// Metrics is exposed on /metrics when non-nil.
	Metrics *metrics.Metrics
}

// NewMux builds the HTTP mux with OAuth discovery, registration,
// authorization, token, and MCP endpoints. The MCP endpoint is
// protected by Bearer token middleware.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-protected-resource", auth.HandleProtectedResourceMetadata(cfg.ServerURL))
	mux.HandleFunc("/.well-known/oauth-authorization-server", auth.HandleServerMetadata(cfg.ServerURL))
	mux.HandleFunc("/.well-known/mcp/manifest.json", auth.HandleManifest(cfg.ServerURL, cfg.Manifest))
	mux.HandleFunc("/oauth/register", auth.HandleRegistration(cfg.Store, cfg.Logger))
	mux.HandleFunc("/oauth/token", auth.HandleToken(cfg.Store, cfg.Logger))

	if cfg.Flow != nil {
		callback := cfg.CallbackPath
		if callback == "" {
			callback = "/callback"
		}

		mux.HandleFunc("/oauth/authorize", cfg.Flow.HandleAuthorize())
		mux.HandleFunc("/login", cfg.Flow.HandleLogin())
		mux.HandleFunc(callback, cfg.Flow.HandleCallback())
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	authMiddleware := auth.Middleware(cfg.Store, cfg.Logger, cfg.Metrics, cfg.ServerURL)
	mux.Handle("/mcp", authMiddleware(cfg.MCPHandler))

	return mux
}
