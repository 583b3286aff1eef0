// ABOUTME: Gateway orchestrator wiring the store, queue manager, and HTTP server
// ABOUTME: Manages route registration and graceful server lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/obsidianecho/echo-gateway/internal/auth"
	"github.com/obsidianecho/echo-gateway/internal/config"
	"github.com/obsidianecho/echo-gateway/internal/queue"
	"github.com/obsidianecho/echo-gateway/internal/ratelimit"
	"github.com/obsidianecho/echo-gateway/internal/store"
)

// Failed-login throttling: per-username budget within a sliding window.
const (
	loginFailureWindow = 15 * time.Minute
	loginFailureLimit  = 5
	loginLimiterSize   = 10000
)

// Gateway orchestrates the echo-gateway server components.
// It owns the store handle, the queue manager, and the HTTP server, with an
// explicit init/teardown lifecycle instead of package-level state.
type Gateway struct {
	config       *config.Config
	store        store.Store
	queue        *queue.Manager
	verifier     *auth.JWTVerifier
	loginLimiter *ratelimit.Limiter
	httpServer   *http.Server
	logger       *slog.Logger
}

// New creates a gateway from configuration: opens the store, builds the
// queue manager, and registers all HTTP routes.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	g := &Gateway{
		config:       cfg,
		store:        sqlStore,
		queue:        queue.NewManager(sqlStore),
		verifier:     auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		loginLimiter: ratelimit.New(loginFailureWindow, loginFailureLimit, loginLimiterSize),
		logger:       logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoint, no auth
	mux.HandleFunc("/healthz", g.handleHealth)

	// Account endpoints, no auth
	mux.HandleFunc("/api/register", g.handleRegister)
	mux.HandleFunc("/api/login", g.handleLogin)

	// User endpoints, JWT auth
	requireUser := auth.RequireUser(g.store, g.verifier)
	mux.Handle("/api/me", requireUser(http.HandlerFunc(g.handleMe)))
	mux.Handle("/api/vaults", requireUser(http.HandlerFunc(g.handleVaults)))
	mux.Handle("/api/vaults/", requireUser(http.HandlerFunc(g.handleVaultByID)))

	// Queue endpoints, vault token auth
	requireVault := auth.RequireVault(g.store)
	mux.Handle("/api/notes", requireVault(http.HandlerFunc(g.handleNotes)))
	mux.Handle("/api/notes/", requireVault(http.HandlerFunc(g.handleNoteRoutes)))

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return g, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var firstErr error
	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("shutting down HTTP server: %w", err)
		}
	}
	g.loginLimiter.Close()
	if err := g.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	return firstErr
}

// Handler returns the gateway's HTTP handler, used by tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// handleHealth returns 200 OK as a liveness check.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
