package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jfilipcz/netfolio/internal/domain"
	"github.com/jfilipcz/netfolio/internal/server/handler"
	"github.com/jfilipcz/netfolio/internal/server/middleware"
	"github.com/jfilipcz/netfolio/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateLimitWindow. A zero
	// limit disables throttling.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Balances *handler.BalanceHandler
	History  *handler.HistoryHandler
	Fiat     *handler.FiatHandler
	Export   *handler.ExportHandler
	Sources  *handler.SourceHandler
}

// Server is the headless HTTP + WebSocket API server for the valuation
// engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, logging, CORS, auth) and attaches
// the WebSocket hub. A nil limiter disables the rate limit middleware.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Balance aggregation and task polling.
	mux.HandleFunc("GET /api/balances", handlers.Balances.QueryBalances)
	mux.HandleFunc("GET /api/tasks/{id}", handlers.Balances.PollTask)

	// Snapshot history read-backs.
	mux.HandleFunc("GET /api/history/assets/{symbol}", handlers.History.AssetHistory)
	mux.HandleFunc("GET /api/history/locations/latest", handlers.History.LatestLocations)
	mux.HandleFunc("GET /api/history/netvalue", handlers.History.NetValueHistory)

	// Manually tracked fiat balances.
	mux.HandleFunc("GET /api/fiat", handlers.Fiat.ListFiat)
	mux.HandleFunc("PUT /api/fiat", handlers.Fiat.SetFiat)
	mux.HandleFunc("DELETE /api/fiat/{currency}", handlers.Fiat.RemoveFiat)

	// Cold-storage exports; absent when no export bucket is configured.
	if handlers.Export != nil {
		mux.HandleFunc("GET /api/export", handlers.Export.ListExports)
		mux.HandleFunc("POST /api/export/snapshot", handlers.Export.ExportSnapshot)
		mux.HandleFunc("POST /api/export/history", handlers.Export.ArchiveHistory)
		mux.HandleFunc("DELETE /api/export/{path...}", handlers.Export.DeleteExport)
	}

	// Per-source fetch status.
	mux.HandleFunc("GET /api/sources", handlers.Sources.ListSources)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.Logging(logger)(h)

	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
