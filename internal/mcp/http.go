package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/stevehiehn/deskagent/internal/observability"
)

// HTTP endpoint paths.
const (
	PathHealth   = "/health"
	PathMetrics  = "/metrics"
	PathSSE      = "/mcp"
	PathMessages = "/mcp/messages"
)

// Authenticator checks bearer tokens. *config.Config satisfies it.
type Authenticator interface {
	HasPassword() bool
	CheckPassword(token string) bool
}

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	// BaseURL is advertised to SSE clients for posting messages.
	BaseURL  string
	Auth     Authenticator
	Gatherer prometheus.Gatherer
}

// Handler returns the HTTP transport: an unauthenticated health check and
// metrics endpoint, and the SSE stream and message endpoints behind bearer
// authentication.
func (s *Server) Handler(o HTTPOptions) http.Handler {
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL(o.BaseURL),
		server.WithSSEEndpoint(PathSSE),
		server.WithMessageEndpoint(PathMessages),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.MetricsMiddleware)
	}

	r.Get(PathHealth, s.handleHealth)
	if o.Gatherer != nil {
		r.Handle(PathMetrics, observability.Handler(o.Gatherer))
	}
	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(o.Auth, s.logger))
		r.Handle(PathSSE, sse.SSEHandler())
		r.Handle(PathMessages, sse.MessageHandler())
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": s.version})
}

// Authentication failure messages.
const (
	msgNoPassword   = "Server not configured with password"
	msgMissingToken = "Missing or invalid authorization header"
	msgBadToken     = "Invalid authentication token"
)

// bearerAuth rejects every request when no password is configured, and
// requests without a matching bearer token otherwise.
func bearerAuth(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil || !auth.HasPassword() {
				writeError(w, http.StatusForbidden, msgNoPassword)
				return
			}
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, msgMissingToken)
				return
			}
			if !auth.CheckPassword(token) {
				logger.Warn("rejected bearer token", zap.String("remote", r.RemoteAddr))
				writeError(w, http.StatusUnauthorized, msgBadToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// ListenAndServe serves the HTTP transport on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string, o HTTPOptions) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(o),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over HTTP", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}
