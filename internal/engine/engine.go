// Package engine dispatches computation requests to the quant core. It owns
// parameter defaults and resource limits, resolves each request into a
// method-specific record, and shapes the results returned to callers.
package engine

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/seenimoa/pricecast/internal/quant"
	"github.com/seenimoa/pricecast/pkg/models"
)

// Config holds defaults and limits applied to every request.
type Config struct {
	TradingDaysPerYear int
	StatsWindow        int
	SimulationWindow   int

	DefaultHorizonDays  int
	DefaultSimulations  int
	DefaultDaysToExpiry int
	DefaultRiskFreeRate float64

	MaxSimulations     int
	MaxHorizonDays     int
	MaxDaysToExpiry    int
	MaxAbsRiskFreeRate float64
	MaxSimulationSteps int64

	// Workers bounds the Monte Carlo worker pool. Zero means GOMAXPROCS.
	Workers int

	// Seeder supplies a seed when a request does not carry one.
	// Nil draws from the runtime's random source.
	Seeder func() uint64
}

// DefaultConfig returns the standard defaults and limits.
func DefaultConfig() Config {
	return Config{
		TradingDaysPerYear:  quant.DefaultTradingDaysPerYear,
		StatsWindow:         30,
		SimulationWindow:    60,
		DefaultHorizonDays:  30,
		DefaultSimulations:  1000,
		DefaultDaysToExpiry: 30,
		DefaultRiskFreeRate: 0.05,
		MaxSimulations:      100_000,
		MaxHorizonDays:      3650,
		MaxDaysToExpiry:     3650,
		MaxAbsRiskFreeRate:  1,
		MaxSimulationSteps:  50_000_000,
	}
}

// FixedSeed returns a Seeder that always yields seed.
func FixedSeed(seed uint64) func() uint64 {
	return func() uint64 { return seed }
}

// Engine is the method dispatcher. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	cfg Config
	sim quant.Simulator
}

// New creates an Engine. Zero fields in cfg fall back to DefaultConfig,
// except DefaultRiskFreeRate where zero is a valid rate.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.TradingDaysPerYear <= 0 {
		cfg.TradingDaysPerYear = def.TradingDaysPerYear
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = def.StatsWindow
	}
	if cfg.SimulationWindow <= 0 {
		cfg.SimulationWindow = def.SimulationWindow
	}
	if cfg.DefaultHorizonDays <= 0 {
		cfg.DefaultHorizonDays = def.DefaultHorizonDays
	}
	if cfg.DefaultSimulations <= 0 {
		cfg.DefaultSimulations = def.DefaultSimulations
	}
	if cfg.DefaultDaysToExpiry <= 0 {
		cfg.DefaultDaysToExpiry = def.DefaultDaysToExpiry
	}
	if cfg.MaxSimulations <= 0 {
		cfg.MaxSimulations = def.MaxSimulations
	}
	if cfg.MaxHorizonDays <= 0 {
		cfg.MaxHorizonDays = def.MaxHorizonDays
	}
	if cfg.MaxDaysToExpiry <= 0 {
		cfg.MaxDaysToExpiry = def.MaxDaysToExpiry
	}
	if !(cfg.MaxAbsRiskFreeRate > 0) {
		cfg.MaxAbsRiskFreeRate = def.MaxAbsRiskFreeRate
	}
	if cfg.MaxSimulationSteps <= 0 {
		cfg.MaxSimulationSteps = def.MaxSimulationSteps
	}
	if cfg.Seeder == nil {
		cfg.Seeder = rand.Uint64
	}
	return &Engine{cfg: cfg, sim: quant.Simulator{Workers: cfg.Workers}}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Compute resolves p for method and runs it against series.
func (e *Engine) Compute(ctx context.Context, method Method, series models.PriceSeries, p Params) (*Result, error) {
	req, err := e.Resolve(method, p)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, series, req)
}

// Resolve applies defaults to p and validates the result against the
// configured limits.
func (e *Engine) Resolve(method Method, p Params) (Request, error) {
	switch method {
	case MethodVolatility:
		window, err := e.window(p.Window, e.cfg.StatsWindow)
		if err != nil {
			return nil, err
		}
		return VolatilityRequest{Window: window}, nil

	case MethodMonteCarlo:
		window, err := e.window(p.Window, e.cfg.SimulationWindow)
		if err != nil {
			return nil, err
		}
		days := intOr(p.Days, e.cfg.DefaultHorizonDays)
		sims := intOr(p.Simulations, e.cfg.DefaultSimulations)
		switch {
		case days <= 0:
			return nil, quant.InvalidParameterError("days must be positive, got %d", days)
		case days > e.cfg.MaxHorizonDays:
			return nil, quant.InvalidParameterError("days must be at most %d, got %d", e.cfg.MaxHorizonDays, days)
		case sims <= 0:
			return nil, quant.InvalidParameterError("simulations must be positive, got %d", sims)
		case sims > e.cfg.MaxSimulations:
			return nil, quant.InvalidParameterError("simulations must be at most %d, got %d", e.cfg.MaxSimulations, sims)
		case int64(days)*int64(sims) > e.cfg.MaxSimulationSteps:
			return nil, quant.InvalidParameterError(
				"days*simulations must be at most %d, got %d", e.cfg.MaxSimulationSteps, int64(days)*int64(sims))
		}
		seed := e.cfg.Seeder()
		if p.Seed != nil {
			seed = *p.Seed
		}
		return MonteCarloRequest{Window: window, Days: days, Simulations: sims, Seed: seed}, nil

	case MethodBlackScholes:
		window, err := e.window(p.Window, e.cfg.SimulationWindow)
		if err != nil {
			return nil, err
		}
		req := BlackScholesRequest{
			Window:       window,
			DaysToExpiry: intOr(p.DaysToExpiry, e.cfg.DefaultDaysToExpiry),
			RiskFreeRate: e.cfg.DefaultRiskFreeRate,
		}
		if p.StrikePrice != nil {
			k := *p.StrikePrice
			if !(k > 0) || math.IsInf(k, 0) {
				return nil, quant.InvalidParameterError("strike price must be positive and finite, got %v", k)
			}
			req.StrikePrice = k
		}
		if p.RiskFreeRate != nil {
			req.RiskFreeRate = *p.RiskFreeRate
		}
		switch {
		case req.DaysToExpiry < 0:
			return nil, quant.InvalidParameterError("days to expiry must be non-negative, got %d", req.DaysToExpiry)
		case req.DaysToExpiry > e.cfg.MaxDaysToExpiry:
			return nil, quant.InvalidParameterError(
				"days to expiry must be at most %d, got %d", e.cfg.MaxDaysToExpiry, req.DaysToExpiry)
		case math.IsNaN(req.RiskFreeRate) || math.IsInf(req.RiskFreeRate, 0):
			return nil, quant.InvalidParameterError("risk-free rate must be finite, got %v", req.RiskFreeRate)
		case math.Abs(req.RiskFreeRate) > e.cfg.MaxAbsRiskFreeRate:
			return nil, quant.InvalidParameterError(
				"risk-free rate must be within ±%v, got %v", e.cfg.MaxAbsRiskFreeRate, req.RiskFreeRate)
		}
		return req, nil
	}
	return nil, quant.UnknownMethodError(string(method))
}

// Run executes a resolved request against series.
func (e *Engine) Run(ctx context.Context, series models.PriceSeries, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		payload any
		err     error
	)
	switch r := req.(type) {
	case VolatilityRequest:
		payload, err = e.stats(series, r)
	case MonteCarloRequest:
		payload, err = e.monteCarlo(ctx, series, r)
	case BlackScholesRequest:
		payload, err = e.blackScholes(series, r)
	default:
		return nil, quant.UnknownMethodError(string(req.Method()))
	}
	if err != nil {
		return nil, err
	}
	return &Result{Method: req.Method(), Payload: payload}, nil
}

func (e *Engine) stats(series models.PriceSeries, r VolatilityRequest) (*StatsResult, error) {
	bars, err := trailing(series, r.Window)
	if err != nil {
		return nil, err
	}
	closes := closesOf(bars)
	est, err := quant.EstimateVolatility(closes, e.cfg.TradingDaysPerYear)
	if err != nil {
		return nil, err
	}

	last, prev := bars[len(bars)-1], bars[len(bars)-2]
	out := &StatsResult{
		CurrentPrice: last.Close,
		Change:       last.Close - prev.Close,
		High30d:      bars[0].High,
		Low30d:       bars[0].Low,
		Volatility:   est.AnnualizedVolatility,
	}
	out.ChangePercent = out.Change / prev.Close * 100

	var volume float64
	for _, b := range bars {
		out.High30d = max(out.High30d, b.High)
		out.Low30d = min(out.Low30d, b.Low)
		volume += float64(b.Volume)
	}
	out.AvgVolume30d = int64(volume / float64(len(bars)))
	return out, nil
}

func (e *Engine) monteCarlo(ctx context.Context, series models.PriceSeries, r MonteCarloRequest) (*MonteCarloResult, error) {
	current, est, err := e.estimate(series, r.Window)
	if err != nil {
		return nil, err
	}
	sim, err := e.sim.Simulate(ctx, models.SimulationRequest{
		CurrentPrice:       current,
		Volatility:         est.AnnualizedVolatility,
		Drift:              est.AnnualizedDrift,
		HorizonDays:        r.Days,
		PathCount:          r.Simulations,
		TradingDaysPerYear: e.cfg.TradingDaysPerYear,
		Seed:               r.Seed,
	})
	if err != nil {
		return nil, err
	}
	return &MonteCarloResult{
		MeanPrice:         sim.Mean,
		MedianPrice:       sim.Median,
		StdPrice:          sim.Std,
		Confidence95Lower: sim.CI95Lower,
		Confidence95Upper: sim.CI95Upper,
		Confidence68Lower: sim.CI68Lower,
		Confidence68Upper: sim.CI68Upper,
		PricePaths:        sim.SamplePaths,
		CurrentPrice:      current,
		Days:              r.Days,
		Simulations:       r.Simulations,
		Volatility:        est.AnnualizedVolatility,
		Drift:             est.AnnualizedDrift,
	}, nil
}

func (e *Engine) blackScholes(series models.PriceSeries, r BlackScholesRequest) (*BlackScholesResult, error) {
	current, est, err := e.estimate(series, r.Window)
	if err != nil {
		return nil, err
	}
	strike := r.StrikePrice
	if strike == 0 {
		strike = current
	}
	c := models.OptionContract{
		Spot:              current,
		Strike:            strike,
		TimeToExpiryYears: float64(r.DaysToExpiry) / 365,
		RiskFreeRate:      r.RiskFreeRate,
		Volatility:        est.AnnualizedVolatility,
	}
	price, err := quant.PriceOption(c)
	if err != nil {
		return nil, err
	}
	g, err := quant.ComputeGreeks(c)
	if err != nil {
		return nil, err
	}
	return &BlackScholesResult{
		CallPrice:    price.Call,
		PutPrice:     price.Put,
		Greeks:       Greeks(g),
		CurrentPrice: current,
		StrikePrice:  strike,
		DaysToExpiry: r.DaysToExpiry,
		RiskFreeRate: r.RiskFreeRate,
		Volatility:   est.AnnualizedVolatility,
	}, nil
}

// estimate returns the latest close and the volatility of the trailing window.
func (e *Engine) estimate(series models.PriceSeries, window int) (float64, models.VolatilityEstimate, error) {
	bars, err := trailing(series, window)
	if err != nil {
		return 0, models.VolatilityEstimate{}, err
	}
	closes := closesOf(bars)
	est, err := quant.EstimateVolatility(closes, e.cfg.TradingDaysPerYear)
	if err != nil {
		return 0, models.VolatilityEstimate{}, err
	}
	return closes[len(closes)-1], est, nil
}

func (e *Engine) window(p *int, def int) (int, error) {
	w := intOr(p, def)
	if w < 2 {
		return 0, quant.InvalidParameterError("window must be at least 2, got %d", w)
	}
	return w, nil
}

// trailing returns the last n bars, failing when the series is shorter.
func trailing(series models.PriceSeries, n int) ([]models.OHLCV, error) {
	if series.Len() < n {
		return nil, quant.InsufficientDataError(
			"need %d bars for %s, have %d", n, tickerLabel(series), series.Len())
	}
	return series.LastBars(n), nil
}

func tickerLabel(series models.PriceSeries) string {
	if series.Ticker == "" {
		return "series"
	}
	return series.Ticker
}

func closesOf(bars []models.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
