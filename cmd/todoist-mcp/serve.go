package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexjbarnes/todoist-mcp/internal/auth"
	"github.com/alexjbarnes/todoist-mcp/internal/config"
	"github.com/alexjbarnes/todoist-mcp/internal/idmap"
	"github.com/alexjbarnes/todoist-mcp/internal/logging"
	"github.com/alexjbarnes/todoist-mcp/internal/mcpserver"
	"github.com/alexjbarnes/todoist-mcp/internal/metrics"
	"github.com/alexjbarnes/todoist-mcp/internal/mover"
	"github.com/alexjbarnes/todoist-mcp/internal/server"
	"github.com/alexjbarnes/todoist-mcp/internal/todoist"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("todoist-mcp starting",
		slog.String("version", Version),
		slog.Bool("oauth", cfg.HasProvider()),
		slog.Bool("preshared_tokens", cfg.HasBearerTokens()),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	api := todoist.New(todoist.Options{
		BaseURL: cfg.TodoistBaseURL,
		Token:   cfg.TodoistToken,
		Timeout: cfg.TodoistTimeout,
		Logger:  logger.With(slog.String("service", "todoist")),
	})

	resolver := idmap.NewResolver(api, logger.With(slog.String("service", "idmap")), m)
	svc := mcpserver.NewService(
		api,
		idmap.NewNormalizer(resolver),
		mover.New(api, logger.With(slog.String("service", "mover")), m),
		logger.With(slog.String("service", "mcp")),
		m,
	)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "todoist-mcp", Version: Version},
		nil,
	)
	svc.RegisterTools(mcpServer)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	authLogger := logger.With(slog.String("service", "auth"))

	allow := auth.NewAllowList(cfg.BearerTokens, authLogger)
	if cfg.BearerTokensFile != "" {
		if err := allow.LoadFile(cfg.BearerTokensFile); err != nil {
			return err
		}
	}

	store := auth.NewStore(allow)
	defer store.Stop()

	var flow *auth.Flow

	if cfg.HasProvider() {
		provider := auth.NewOAuth2Provider(auth.ProviderConfig{
			ClientID:     cfg.ProviderClientID,
			ClientSecret: cfg.ProviderClientSecret,
			AuthURL:      cfg.ProviderAuthURL,
			TokenURL:     cfg.ProviderTokenURL,
			UserInfoURL:  cfg.ProviderUserInfoURL,
			LoginPath:    cfg.ProviderLoginPath,
			Scopes:       cfg.ProviderScopes,
			CallbackURL:  cfg.CallbackURL,
			Timeout:      cfg.ProviderTimeout,
		})

		flow = auth.NewFlow(store, provider, authLogger, auth.FlowConfig{
			ServerURL:     cfg.ServerURL,
			AutoRegister:  cfg.AutoRegister,
			AllowedLogins: cfg.AllowedLogins,
		})
	} else {
		logger.Warn("no identity provider configured, only pre-shared bearer tokens are accepted")
	}

	mux := server.NewMux(server.MuxConfig{
		Store:      store,
		MCPHandler: mcpHandler,
		Logger:     authLogger,
		ServerURL:  cfg.ServerURL,
		Manifest: auth.Manifest{
			Name:        "todoist-mcp",
			Version:     Version,
			Description: "Batch Todoist task, project, section and comment tools",
			Tools:       mcpserver.ToolNames(),
		},
		Flow:         flow,
		CallbackPath: cfg.CallbackPath(),
		Metrics:      m,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.BearerTokensFile != "" {
		g.Go(func() error {
			err := allow.Watch(gctx, cfg.BearerTokensFile)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("bearer token file watch stopped", logging.Err(err))
			}

			return nil
		})
	}

	// Shutdown when context is cancelled.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("listen", cfg.ListenAddr),
			slog.String("server_url", cfg.ServerURL),
			slog.Int("preshared_tokens", allow.Len()),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	return g.Wait()
}
