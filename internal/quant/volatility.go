// Package quant implements the numerical core of pricecast: volatility
// estimation, GBM Monte Carlo simulation, and Black-Scholes valuation.
//
// Every function is pure over its inputs. Nothing here logs or touches
// shared state, so calls may run concurrently without synchronization.
package quant

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/pricecast/pkg/models"
)

// DefaultTradingDaysPerYear annualizes daily statistics.
const DefaultTradingDaysPerYear = 252

// EstimateVolatility derives annualized volatility and drift from a window of
// closing prices ordered oldest first.
func EstimateVolatility(closes []float64, tradingDaysPerYear int) (models.VolatilityEstimate, error) {
	if len(closes) < 2 {
		return models.VolatilityEstimate{}, InsufficientDataError(
			"volatility needs at least 2 prices, got %d", len(closes))
	}
	if tradingDaysPerYear <= 0 {
		return models.VolatilityEstimate{}, InvalidParameterError(
			"trading days per year must be positive, got %d", tradingDaysPerYear)
	}

	returns, err := LogReturns(closes)
	if err != nil {
		return models.VolatilityEstimate{}, err
	}

	days := float64(tradingDaysPerYear)
	mean := stat.Mean(returns, nil)

	// A single return has no sample variance; identical returns have none either.
	vol := 0.0
	if len(returns) > 1 && !allEqual(returns) {
		vol = math.Sqrt(stat.Variance(returns, nil)) * math.Sqrt(days)
	}

	return models.VolatilityEstimate{
		AnnualizedVolatility: vol,
		AnnualizedDrift:      mean * days,
		WindowSize:           len(closes),
	}, nil
}

// LogReturns computes ln(P_t / P_{t-1}) over consecutive prices.
func LogReturns(prices []float64) ([]float64, error) {
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, InvalidParameterError("price at index %d must be positive and finite, got %v", i, p)
		}
	}
	if len(prices) < 2 {
		return nil, nil
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return returns, nil
}

func allEqual(data []float64) bool {
	for _, v := range data[1:] {
		if v != data[0] {
			return false
		}
	}
	return true
}
