// Package server provides HTTP server construction for settings-sync.
package server

import (
	"log/slog"
	"net/http"

	"github.com/alexjbarnes/settings-sync/internal/auth"
)

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Keys           *auth.KeyStore
	MCPHandler     http.Handler
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// NewMux builds the HTTP mux with the MCP, metrics and health
// endpoints. MCP and metrics are protected by API key middleware.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()

	authMiddleware := auth.Middleware(cfg.Keys, cfg.Logger)
	mux.Handle("/mcp", authMiddleware(cfg.MCPHandler))

	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", authMiddleware(cfg.MetricsHandler))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}
