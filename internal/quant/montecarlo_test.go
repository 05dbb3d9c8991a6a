package quant

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/seenimoa/pricecast/pkg/models"
)

func baseSimulation() models.SimulationRequest {
	return models.SimulationRequest{
		CurrentPrice: 100,
		Volatility:   0.3,
		Drift:        0.08,
		HorizonDays:  30,
		PathCount:    1000,
		Seed:         42,
	}
}

func TestSimulateInvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.SimulationRequest)
	}{
		{"zero horizon", func(r *models.SimulationRequest) { r.HorizonDays = 0 }},
		{"negative horizon", func(r *models.SimulationRequest) { r.HorizonDays = -3 }},
		{"zero paths", func(r *models.SimulationRequest) { r.PathCount = 0 }},
		{"zero price", func(r *models.SimulationRequest) { r.CurrentPrice = 0 }},
		{"negative volatility", func(r *models.SimulationRequest) { r.Volatility = -0.1 }},
		{"nan drift", func(r *models.SimulationRequest) { r.Drift = math.NaN() }},
		{"negative trading days", func(r *models.SimulationRequest) { r.TradingDaysPerYear = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseSimulation()
			tt.mutate(&req)
			_, err := Simulate(context.Background(), req)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestSimulateZeroVolatilityIsDeterministic(t *testing.T) {
	req := baseSimulation()
	req.Volatility = 0
	req.Drift = 0.12
	req.PathCount = 300

	res, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	T := float64(req.HorizonDays) / 252
	want := req.CurrentPrice * math.Exp(req.Drift*T)
	for _, v := range []float64{res.Mean, res.Median, res.CI95Lower, res.CI95Upper, res.CI68Lower, res.CI68Upper} {
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("expected every statistic to equal %.10f, got %.10f", want, v)
		}
	}
	if res.Std != 0 {
		t.Errorf("expected zero std, got %g", res.Std)
	}
	for i, path := range res.SamplePaths {
		if last := path[len(path)-1]; math.Abs(last-want) > 1e-9 {
			t.Fatalf("path %d terminal: got %.10f, want %.10f", i, last, want)
		}
	}
}

func TestSimulateConvergesToAnalyticMean(t *testing.T) {
	req := baseSimulation()
	req.Volatility = 0.2
	req.Drift = 0.1
	req.PathCount = 20000
	req.Seed = 7

	res, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	T := float64(req.HorizonDays) / 252
	want := req.CurrentPrice * math.Exp(req.Drift*T)
	// Standard error is about 0.05 here; allow ten of them.
	if math.Abs(res.Mean-want) > 0.5 {
		t.Errorf("mean %.4f too far from analytic %.4f", res.Mean, want)
	}
}

func TestSimulateConfidenceOrdering(t *testing.T) {
	for _, vol := range []float64{0, 0.05, 0.4, 1.5} {
		req := baseSimulation()
		req.Volatility = vol
		res, err := Simulate(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		ordered := res.CI95Lower <= res.CI68Lower &&
			res.CI68Lower <= res.Median &&
			res.Median <= res.CI68Upper &&
			res.CI68Upper <= res.CI95Upper
		if !ordered {
			t.Errorf("vol=%.2f: bands out of order: %+v", vol, res)
		}
	}
}

func TestSimulateReproducible(t *testing.T) {
	req := baseSimulation()
	a, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different results")
	}

	req.Seed = 43
	c, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if c.Mean == a.Mean {
		t.Error("different seeds produced the same mean")
	}
}

func TestSimulateIndependentOfWorkerCount(t *testing.T) {
	req := baseSimulation()
	req.PathCount = 2000 // several blocks

	serial, err := Simulator{Workers: 1}.Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := Simulator{Workers: 8}.Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(serial, parallel) {
		t.Error("worker count changed the result")
	}
}

func TestSimulateSamplePaths(t *testing.T) {
	tests := []struct {
		paths int
		want  int
	}{
		{1, 1},
		{50, 50},
		{100, 100},
		{1000, 100},
	}
	for _, tt := range tests {
		req := baseSimulation()
		req.PathCount = tt.paths
		res, err := Simulate(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.SamplePaths) != tt.want {
			t.Errorf("paths=%d: got %d sample paths, want %d", tt.paths, len(res.SamplePaths), tt.want)
		}
		for _, p := range res.SamplePaths {
			if len(p) != req.HorizonDays+1 {
				t.Fatalf("path length: got %d, want %d", len(p), req.HorizonDays+1)
			}
			if p[0] != req.CurrentPrice {
				t.Fatalf("path must start at current price, got %v", p[0])
			}
		}
	}
}

func TestSimulateSinglePath(t *testing.T) {
	req := baseSimulation()
	req.PathCount = 1
	res, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	terminal := res.SamplePaths[0][req.HorizonDays]
	if res.Mean != terminal || res.Median != terminal || res.Std != 0 {
		t.Errorf("single path stats should collapse to the terminal price: %+v", res)
	}
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := baseSimulation()
	_, err := Simulate(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func BenchmarkSimulate1000x30(b *testing.B) {
	req := baseSimulation()
	for i := 0; i < b.N; i++ {
		_, _ = Simulate(context.Background(), req)
	}
}
