// ABOUTME: Gateway orchestrator that owns the HTTP server and its lifecycle.
// ABOUTME: Routes conversation requests to the session router; handles CORS and health.

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/parley-gateway/internal/config"
	"github.com/2389/parley-gateway/internal/llm"
	"github.com/2389/parley-gateway/internal/session"
)

// Gateway is the outward-facing entry point. It terminates HTTP and
// websocket-upgrade requests and forwards everything to the session
// router; conversation state lives entirely in the actors.
type Gateway struct {
	config      *config.Config
	router      *session.Router
	completer   completer
	transcriber transcriber
	httpServer  *http.Server
	handler     http.Handler
	upgrader    websocket.Upgrader
	logger      *slog.Logger

	// serverID identifies this gateway instance
	serverID string
}

// New creates a Gateway with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := llm.New(cfg.Inference, logger)

	gw := &Gateway{
		config:      cfg,
		router:      session.NewRouter(logger),
		completer:   client,
		transcriber: client,
		logger:      logger.With("component", "gateway"),
		serverID:    generateServerID(),
	}
	gw.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     gw.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	mux.HandleFunc("/api/conversations/", gw.handleConversationRoutes)

	gw.handler = gw.corsMiddleware(mux)
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's root HTTP handler, CORS included.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails. Returns nil on graceful shutdown.
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
		g.logger.Info("shutdown signal received")
	case serverErr = <-errCh:
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, waiting for in-flight requests up to
// the context deadline.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "server_id", g.serverID)
	return g.httpServer.Shutdown(ctx)
}

// corsMiddleware applies CORS headers to every response and answers
// preflight requests. An empty allowed-origins list permits any origin.
func (g *Gateway) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := g.allowOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowOrigin returns the Allow-Origin header value for the given request
// origin, or empty if the origin is not permitted.
func (g *Gateway) allowOrigin(origin string) string {
	if len(g.config.Server.AllowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range g.config.Server.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// checkOrigin gates websocket upgrades with the same origin policy as CORS.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header
		return true
	}
	return g.allowOrigin(origin) != ""
}

// handleHealth returns 200 OK if the HTTP server is responsive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK with the number of resident conversation actors.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d conversations)", g.router.Size())
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return fmt.Sprintf("parley-gateway-%d", time.Now().UnixNano()%1000000)
}
