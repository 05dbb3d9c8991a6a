package engine

import (
	"strings"

	"github.com/seenimoa/pricecast/internal/quant"
)

// Method identifies one of the supported computation kinds.
type Method string

const (
	MethodVolatility   Method = "volatility_only"
	MethodMonteCarlo   Method = "monte_carlo"
	MethodBlackScholes Method = "black_scholes"
)

// Methods returns every supported method tag.
func Methods() []Method {
	return []Method{MethodVolatility, MethodMonteCarlo, MethodBlackScholes}
}

// ParseMethod validates a method tag. Matching ignores case and surrounding
// whitespace, and accepts "-" for "_".
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	for _, known := range Methods() {
		if m == known {
			return m, nil
		}
	}
	return "", quant.UnknownMethodError(s)
}

// Params carries the optional request parameters as received from a caller.
// Nil fields take the engine defaults; explicit values are validated.
type Params struct {
	Window       *int     `json:"window,omitempty"`
	Days         *int     `json:"days,omitempty"`
	Simulations  *int     `json:"simulations,omitempty"`
	Seed         *uint64  `json:"seed,omitempty"`
	StrikePrice  *float64 `json:"strike_price,omitempty"`
	DaysToExpiry *int     `json:"days_to_expiry,omitempty"`
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`
}

// Request is a fully resolved, method-specific parameter record.
type Request interface {
	Method() Method
}

// VolatilityRequest computes summary statistics and volatility.
type VolatilityRequest struct {
	Window int
}

// MonteCarloRequest simulates future price paths.
type MonteCarloRequest struct {
	Window      int
	Days        int
	Simulations int
	Seed        uint64
}

// BlackScholesRequest prices a European call/put pair.
type BlackScholesRequest struct {
	Window       int
	StrikePrice  float64 // 0 prices at the money
	DaysToExpiry int
	RiskFreeRate float64
}

func (VolatilityRequest) Method() Method   { return MethodVolatility }
func (MonteCarloRequest) Method() Method   { return MethodMonteCarlo }
func (BlackScholesRequest) Method() Method { return MethodBlackScholes }
