package quant

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/pricecast/pkg/models"
)

const (
	// MaxSamplePaths caps the trajectories returned for visualization.
	MaxSamplePaths = 100

	// pathBlockSize is the number of paths that share one random stream.
	// Block b always draws from the stream seeded by (seed, b), which keeps
	// results identical for any worker count.
	pathBlockSize = 256
)

// Simulator runs GBM Monte Carlo simulations on a bounded worker pool.
type Simulator struct {
	// Workers limits concurrent path blocks. Zero means GOMAXPROCS.
	Workers int
}

// Simulate runs req with a default Simulator.
func Simulate(ctx context.Context, req models.SimulationRequest) (models.SimulationResult, error) {
	return Simulator{}.Simulate(ctx, req)
}

// Simulate generates req.PathCount geometric Brownian motion paths over
// req.HorizonDays steps and summarizes the terminal prices.
func (s Simulator) Simulate(ctx context.Context, req models.SimulationRequest) (models.SimulationResult, error) {
	if err := validateSimulation(req); err != nil {
		return models.SimulationResult{}, err
	}
	tdpy := req.TradingDaysPerYear
	if tdpy == 0 {
		tdpy = DefaultTradingDaysPerYear
	}

	dt := 1 / float64(tdpy)
	p := gbmParams{
		start:     req.CurrentPrice,
		drift:     req.Drift,
		vol:       req.Volatility,
		dt:        dt,
		driftStep: (req.Drift - 0.5*req.Volatility*req.Volatility) * dt,
		volStep:   req.Volatility * math.Sqrt(dt),
		horizon:   req.HorizonDays,
		seed:      req.Seed,
	}

	terminal := make([]float64, req.PathCount)
	samples := make([][]float64, min(MaxSamplePaths, req.PathCount))

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	blocks := (req.PathCount + pathBlockSize - 1) / pathBlockSize
	for b := 0; b < blocks; b++ {
		lo := b * pathBlockSize
		hi := min(lo+pathBlockSize, req.PathCount)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.simulateBlock(uint64(b), lo, hi, terminal, samples)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.SimulationResult{}, err
	}

	return summarize(terminal, samples), nil
}

type gbmParams struct {
	start, drift, vol float64
	dt                float64
	driftStep         float64
	volStep           float64
	horizon           int
	seed              uint64
}

// simulateBlock fills terminal[lo:hi] and any sample trajectories in range.
// Blocks write disjoint indices, so no locking is needed.
func (p gbmParams) simulateBlock(block uint64, lo, hi int, terminal []float64, samples [][]float64) {
	var rng *rand.Rand
	if p.vol > 0 {
		rng = rand.New(rand.NewPCG(p.seed, block))
	}

	for i := lo; i < hi; i++ {
		var path []float64
		if i < len(samples) {
			path = make([]float64, p.horizon+1)
			path[0] = p.start
			samples[i] = path
		}

		price := p.start
		for t := 1; t <= p.horizon; t++ {
			if rng == nil {
				// Zero volatility: deterministic exponential drift.
				price = p.start * math.Exp(p.drift*float64(t)*p.dt)
			} else {
				price *= math.Exp(p.driftStep + p.volStep*rng.NormFloat64())
			}
			if path != nil {
				path[t] = price
			}
		}
		terminal[i] = price
	}
}

func summarize(terminal []float64, samples [][]float64) models.SimulationResult {
	sorted := slices.Clone(terminal)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(terminal, nil)
	if sorted[0] == sorted[len(sorted)-1] {
		std = 0
	}

	return models.SimulationResult{
		Mean:        mean,
		Median:      Percentile(sorted, 50),
		Std:         std,
		CI95Lower:   Percentile(sorted, 2.5),
		CI95Upper:   Percentile(sorted, 97.5),
		CI68Lower:   Percentile(sorted, 16),
		CI68Upper:   Percentile(sorted, 84),
		SamplePaths: samples,
	}
}

func validateSimulation(req models.SimulationRequest) error {
	switch {
	case !(req.CurrentPrice > 0) || math.IsInf(req.CurrentPrice, 0):
		return InvalidParameterError("current price must be positive and finite, got %v", req.CurrentPrice)
	case !(req.Volatility >= 0) || math.IsInf(req.Volatility, 0):
		return InvalidParameterError("volatility must be non-negative and finite, got %v", req.Volatility)
	case math.IsNaN(req.Drift) || math.IsInf(req.Drift, 0):
		return InvalidParameterError("drift must be finite, got %v", req.Drift)
	case req.HorizonDays <= 0:
		return InvalidParameterError("horizon days must be positive, got %d", req.HorizonDays)
	case req.PathCount <= 0:
		return InvalidParameterError("path count must be positive, got %d", req.PathCount)
	case req.TradingDaysPerYear < 0:
		return InvalidParameterError("trading days per year must be positive, got %d", req.TradingDaysPerYear)
	}
	return nil
}
