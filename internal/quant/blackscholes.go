package quant

import (
	"math"

	"github.com/seenimoa/pricecast/pkg/models"
)

// bsTerms holds the intermediate Black-Scholes quantities shared by pricing
// and Greeks.
type bsTerms struct {
	c          models.OptionContract
	discount   float64 // e^(-rT)
	degenerate bool    // σ = 0 or T = 0: d1/d2 undefined
	d1, d2     float64
	sqrtT      float64
}

func newBSTerms(c models.OptionContract) (bsTerms, error) {
	if err := validateContract(c); err != nil {
		return bsTerms{}, err
	}

	t := bsTerms{
		c:        c,
		discount: math.Exp(-c.RiskFreeRate * c.TimeToExpiryYears),
		sqrtT:    math.Sqrt(c.TimeToExpiryYears),
	}
	if !allFinite(t.discount, c.Strike*t.discount) {
		return bsTerms{}, InvalidParameterError(
			"risk-free rate %v over %v years overflows the discount factor", c.RiskFreeRate, c.TimeToExpiryYears)
	}
	if c.Volatility == 0 || c.TimeToExpiryYears == 0 {
		t.degenerate = true
		return t, nil
	}

	volSqrtT := c.Volatility * t.sqrtT
	t.d1 = (math.Log(c.Spot/c.Strike) + (c.RiskFreeRate+0.5*c.Volatility*c.Volatility)*c.TimeToExpiryYears) / volSqrtT
	t.d2 = t.d1 - volSqrtT
	return t, nil
}

// PriceOption values a European call and put under Black-Scholes.
// At σ = 0 or T = 0 it returns the discounted intrinsic values.
func PriceOption(c models.OptionContract) (models.OptionPrice, error) {
	t, err := newBSTerms(c)
	if err != nil {
		return models.OptionPrice{}, err
	}

	pvStrike := c.Strike * t.discount
	var call, put float64
	if t.degenerate {
		call = c.Spot - pvStrike
		put = pvStrike - c.Spot
	} else {
		call = c.Spot*normCDF(t.d1) - pvStrike*normCDF(t.d2)
		put = pvStrike*normCDF(-t.d2) - c.Spot*normCDF(-t.d1)
	}
	if !allFinite(call, put) {
		return models.OptionPrice{}, InvalidParameterError("option price is not finite for %+v", c)
	}

	// Deep out-of-the-money legs can round a hair below zero.
	return models.OptionPrice{
		Call: math.Max(call, 0),
		Put:  math.Max(put, 0),
	}, nil
}

// ComputeGreeks returns call/put delta, gamma, daily theta and vega per
// volatility point. In the σ = 0 or T = 0 limit gamma, theta and vega are 0
// and delta is the limit of Φ(d1).
func ComputeGreeks(c models.OptionContract) (models.GreeksSet, error) {
	t, err := newBSTerms(c)
	if err != nil {
		return models.GreeksSet{}, err
	}

	if t.degenerate {
		fwd := c.Spot - c.Strike*t.discount
		callDelta := 0.5
		switch {
		case fwd > 0:
			callDelta = 1
		case fwd < 0:
			callDelta = 0
		}
		return models.GreeksSet{CallDelta: callDelta, PutDelta: callDelta - 1}, nil
	}

	pdf := normPDF(t.d1)
	cdf := normCDF(t.d1)
	rK := c.RiskFreeRate * c.Strike * t.discount
	decay := -c.Spot * pdf * c.Volatility / (2 * t.sqrtT)

	g := models.GreeksSet{
		CallDelta: cdf,
		PutDelta:  cdf - 1,
		Gamma:     pdf / (c.Spot * c.Volatility * t.sqrtT),
		CallTheta: (decay - rK*normCDF(t.d2)) / 365,
		PutTheta:  (decay + rK*normCDF(-t.d2)) / 365,
		Vega:      c.Spot * pdf * t.sqrtT / 100,
	}
	if !allFinite(g.CallDelta, g.PutDelta, g.Gamma, g.CallTheta, g.PutTheta, g.Vega) {
		return models.GreeksSet{}, InvalidParameterError("greeks are not finite for %+v", c)
	}
	return g, nil
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validateContract(c models.OptionContract) error {
	switch {
	case !(c.Spot > 0) || math.IsInf(c.Spot, 0):
		return InvalidParameterError("spot price must be positive and finite, got %v", c.Spot)
	case !(c.Strike > 0) || math.IsInf(c.Strike, 0):
		return InvalidParameterError("strike price must be positive and finite, got %v", c.Strike)
	case !(c.TimeToExpiryYears >= 0) || math.IsInf(c.TimeToExpiryYears, 0):
		return InvalidParameterError("time to expiry must be non-negative and finite, got %v", c.TimeToExpiryYears)
	case !(c.Volatility >= 0) || math.IsInf(c.Volatility, 0):
		return InvalidParameterError("volatility must be non-negative and finite, got %v", c.Volatility)
	case math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0):
		return InvalidParameterError("risk-free rate must be finite, got %v", c.RiskFreeRate)
	}
	return nil
}
