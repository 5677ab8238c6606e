// Package server exposes the orchestrator over HTTP and WebSocket for the
// dApp frontend.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/server/handler"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/server/middleware"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Assets    *handler.AssetHandler
	Positions *handler.PositionHandler
	Intents   *handler.IntentHandler
	History   *handler.HistoryHandler
}

// Server is the HTTP + WebSocket API front for the orchestrator.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check, no auth.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Asset registry.
	mux.HandleFunc("GET /api/assets", handlers.Assets.ListAssets)
	mux.HandleFunc("GET /api/assets/{key}", handlers.Assets.GetAsset)

	// Position snapshots.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/positions/{asset}", handlers.Positions.GetPosition)

	// Orchestrated intents.
	mux.HandleFunc("POST /api/intents/deposit", handlers.Intents.Deposit)
	mux.HandleFunc("POST /api/intents/split", handlers.Intents.Split)
	mux.HandleFunc("POST /api/intents/deposit-split", handlers.Intents.DepositAndSplit)
	mux.HandleFunc("POST /api/intents/approve", handlers.Intents.Approve)
	mux.HandleFunc("POST /api/intents/reset", handlers.Intents.Reset)
	mux.HandleFunc("GET /api/intents/state", handlers.Intents.State)

	// Direct transactions.
	mux.HandleFunc("POST /api/tx/claim", handlers.Intents.ClaimYield)
	mux.HandleFunc("POST /api/tx/unwrap", handlers.Intents.Unwrap)
	mux.HandleFunc("POST /api/tx/redeem", handlers.Intents.RedeemPT)
	mux.HandleFunc("POST /api/tx/faucet", handlers.Intents.FaucetMint)

	// Transaction history.
	mux.HandleFunc("GET /api/history", handlers.History.ListHistory)

	// Event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("server: listening", slog.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: draining")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: drain: %w", err)
	}
	return nil
}

// corsMiddleware allows the configured origins; an empty list allows all.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && originAllowed(allowedOrigins, origin) {
				hdr := w.Header()
				hdr.Set("Access-Control-Allow-Origin", origin)
				hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				hdr.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
