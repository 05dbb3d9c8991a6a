package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seenimoa/pricecast/internal/datasource"
	"github.com/seenimoa/pricecast/internal/engine"
	"github.com/seenimoa/pricecast/internal/logging"
	"github.com/seenimoa/pricecast/internal/quant"
	"github.com/seenimoa/pricecast/pkg/models"
)

// ComputeRequest is the body of POST /api/v1/compute.
type ComputeRequest struct {
	Method string        `json:"method"`
	Ticker string        `json:"ticker,omitempty"`
	Params engine.Params `json:"params"`
}

// ComputeEvent is broadcast to WebSocket clients after each computation.
type ComputeEvent struct {
	RunID     string        `json:"run_id"`
	Method    engine.Method `json:"method"`
	Ticker    string        `json:"ticker"`
	ElapsedMS float64       `json:"elapsed_ms"`
	Error     string        `json:"error,omitempty"`
}

// HistoricalBar is one row of GET /api/v1/historical.
type HistoricalBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// MethodInfo describes one computation method and its defaults.
type MethodInfo struct {
	Method   engine.Method  `json:"method"`
	Defaults map[string]any `json:"defaults"`
}

// ── Health ──

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// ── Computation ──

// handleCompute runs one method against the requested ticker's history.
func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}

	method, err := engine.ParseMethod(req.Method)
	if err != nil {
		s.writeComputeError(w, err)
		return
	}
	s.compute(w, r, method, req.Ticker, req.Params)
}

// handleStats is a GET shortcut for the volatility_only method.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var p engine.Params
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(quant.KindInvalidParameter), "window must be an integer")
			return
		}
		p.Window = &n
	}
	s.compute(w, r, engine.MethodVolatility, r.URL.Query().Get("ticker"), p)
}

func (s *Server) compute(w http.ResponseWriter, r *http.Request, method engine.Method, ticker string, p engine.Params) {
	runID := uuid.NewString()
	w.Header().Set("X-Run-ID", runID)

	ctx, cancel := context.WithTimeout(logging.WithRunID(r.Context(), runID), computeTimeout)
	defer cancel()
	log := logging.FromContext(ctx, s.log)

	series, err := s.series(ctx, ticker)
	if err != nil {
		log.Warn("price history unavailable", "ticker", ticker, "error", err)
		s.writeComputeError(w, err)
		return
	}

	start := time.Now()
	res, err := s.engine.Compute(ctx, method, series, p)
	elapsed := time.Since(start)
	s.metrics.ObserveCompute(string(method), string(quant.KindOf(err)), elapsed)

	event := ComputeEvent{
		RunID:     runID,
		Method:    method,
		Ticker:    series.Ticker,
		ElapsedMS: float64(elapsed.Microseconds()) / 1000,
	}
	if err != nil {
		event.Error = err.Error()
		s.wsHub.Broadcast(WSMessage{Type: "compute_failed", Data: event})
		log.Info("computation rejected", "method", method, "ticker", series.Ticker, "error", err)
		s.writeComputeError(w, err)
		return
	}

	if mc, ok := res.Payload.(*engine.MonteCarloResult); ok {
		s.metrics.AddPaths(mc.Simulations)
	}
	s.wsHub.Broadcast(WSMessage{Type: "compute_complete", Data: event})
	log.Info("computation complete", "method", method, "ticker", series.Ticker, "elapsed", elapsed)

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res.Payload})
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Config()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: []MethodInfo{
			{Method: engine.MethodVolatility, Defaults: map[string]any{
				"window": cfg.StatsWindow,
			}},
			{Method: engine.MethodMonteCarlo, Defaults: map[string]any{
				"window":          cfg.SimulationWindow,
				"days":            cfg.DefaultHorizonDays,
				"simulations":     cfg.DefaultSimulations,
				"max_simulations": cfg.MaxSimulations,
				"max_days":        cfg.MaxHorizonDays,
			}},
			{Method: engine.MethodBlackScholes, Defaults: map[string]any{
				"window":                 cfg.SimulationWindow,
				"days_to_expiry":         cfg.DefaultDaysToExpiry,
				"risk_free_rate":         cfg.DefaultRiskFreeRate,
				"max_abs_risk_free_rate": cfg.MaxAbsRiskFreeRate,
			}},
		},
	})
}

// ── Price history ──

// handleHistorical returns the last `days` daily bars (default 30).
func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days", 30)
	if !ok {
		return
	}
	series, err := s.series(r.Context(), r.URL.Query().Get("ticker"))
	if err != nil {
		s.writeComputeError(w, err)
		return
	}

	bars := series.LastBars(days)
	out := make([]HistoricalBar, len(bars))
	for i, b := range bars {
		out[i] = HistoricalBar{
			Date:   b.Timestamp.Format(time.DateOnly),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

// handleOHLCV returns the full stored series for a ticker, optionally
// limited to the last `days` bars.
func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days", 0)
	if !ok {
		return
	}
	series, err := s.series(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		s.writeComputeError(w, err)
		return
	}
	if days > 0 {
		series = models.PriceSeries{Ticker: series.Ticker, Bars: series.LastBars(days)}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: series})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"default": s.defaultTicker(),
			"loaded":  s.store.Tickers(),
		},
	})
}

// ── Helpers ──

func (s *Server) defaultTicker() string {
	return datasource.NormalizeTicker(s.cfg.Data.Ticker)
}

func (s *Server) series(ctx context.Context, ticker string) (models.PriceSeries, error) {
	if strings.TrimSpace(ticker) == "" {
		ticker = s.defaultTicker()
	}
	return s.store.Series(ctx, ticker)
}

// writeComputeError maps engine and data errors onto HTTP statuses.
func (s *Server) writeComputeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("internal error", "error", err)
		msg = "internal server error"
	}
	writeError(w, status, kind, msg)
}

func errorStatus(err error) (int, string) {
	switch kind := quant.KindOf(err); kind {
	case quant.KindInsufficientData:
		return http.StatusUnprocessableEntity, string(kind)
	case quant.KindInvalidParameter, quant.KindUnknownMethod:
		return http.StatusBadRequest, string(kind)
	}
	switch {
	case errors.Is(err, datasource.ErrTickerNotFound):
		return http.StatusNotFound, "ticker_not_found"
	case errors.Is(err, datasource.ErrNotSupported), errors.Is(err, datasource.ErrNoData):
		return http.StatusNotFound, "no_data"
	case errors.Is(err, datasource.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "cancelled"
	}
	return http.StatusInternalServerError, "internal"
}

// queryInt parses a non-negative integer query parameter. It writes a 400
// and returns false on malformed input.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, string(quant.KindInvalidParameter),
			name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
