// Package api provides the HTTP REST API server for pricecast.
//
// It exposes the computation engine, price history, Prometheus metrics,
// and a WebSocket stream of completed computations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/pricecast/internal/config"
	"github.com/seenimoa/pricecast/internal/datasource"
	"github.com/seenimoa/pricecast/internal/engine"
	"github.com/seenimoa/pricecast/internal/metrics"
)

const (
	// maxBodyBytes caps request bodies.
	maxBodyBytes = 1 << 20

	// computeTimeout bounds a single computation.
	computeTimeout = 60 * time.Second
)

// Options wires a Server's collaborators. Config, Engine and Store are required.
type Options struct {
	Config  *config.Config
	Engine  *engine.Engine
	Store   *datasource.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Version string
}

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	engine    *engine.Engine
	store     *datasource.Store
	metrics   *metrics.Metrics
	log       *slog.Logger
	wsHub     *WSHub
	version   string
	startedAt time.Time
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("api: config is required")
	case opts.Engine == nil:
		return nil, errors.New("api: engine is required")
	case opts.Store == nil:
		return nil, errors.New("api: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	srv := &Server{
		cfg:       opts.Config,
		engine:    opts.Engine,
		store:     opts.Store,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		version:   opts.Version,
		startedAt: time.Now(),
	}
	srv.wsHub = NewWSHub(srv.onClientsChanged)
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then shuts down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx, addr)
}

// Serve runs the HTTP server until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      computeTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr, "version", s.version)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(blockScanners)
	r.Use(securityHeaders)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Run-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// Prometheus
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket connections are long-lived; keep them outside the timeout.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(computeTimeout + 5*time.Second))

			r.Get("/health", s.handleHealth)

			// Computation
			r.Post("/compute", s.handleCompute)
			r.Get("/methods", s.handleMethods)
			r.Get("/stats", s.handleStats)

			// Price history
			r.Get("/historical", s.handleHistorical)
			r.Get("/ohlcv/{ticker}", s.handleOHLCV)
			r.Get("/tickers", s.handleTickers)

			// Configuration
			r.Get("/config", s.handleGetConfig)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

func (s *Server) onClientsChanged(n int) {
	if s.metrics != nil {
		s.metrics.WSClients.Set(float64(n))
	}
}

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// internalErrorBody is sent when a response cannot be encoded.
const internalErrorBody = `{"success":false,"error":"internal server error","kind":"internal"}`

// writeJSON encodes v before writing the header, so an encoding failure
// still produces a well-formed 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		status, body = http.StatusInternalServerError, []byte(internalErrorBody)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
		Kind:    kind,
	})
}
