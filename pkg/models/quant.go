package models

// VolatilityEstimate is the annualized volatility and drift of a close window.
type VolatilityEstimate struct {
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	AnnualizedDrift      float64 `json:"annualized_drift"`
	WindowSize           int     `json:"window_size"`
}

// SimulationRequest parameterizes a GBM Monte Carlo run.
type SimulationRequest struct {
	CurrentPrice       float64 `json:"current_price"`
	Volatility         float64 `json:"volatility"`
	Drift              float64 `json:"drift"`
	HorizonDays        int     `json:"horizon_days"`
	PathCount          int     `json:"path_count"`
	TradingDaysPerYear int     `json:"trading_days_per_year"` // 0 means 252
	Seed               uint64  `json:"seed"`
}

// SimulationResult summarizes the terminal price distribution of a run.
type SimulationResult struct {
	Mean        float64     `json:"mean"`
	Median      float64     `json:"median"`
	Std         float64     `json:"std"`
	CI95Lower   float64     `json:"ci_95_lower"`
	CI95Upper   float64     `json:"ci_95_upper"`
	CI68Lower   float64     `json:"ci_68_lower"`
	CI68Upper   float64     `json:"ci_68_upper"`
	SamplePaths [][]float64 `json:"sample_paths"` // step 0 is the current price
}

// OptionContract holds the Black-Scholes inputs for a European option.
type OptionContract struct {
	Spot              float64 `json:"spot"`
	Strike            float64 `json:"strike"`
	TimeToExpiryYears float64 `json:"time_to_expiry_years"`
	RiskFreeRate      float64 `json:"risk_free_rate"`
	Volatility        float64 `json:"volatility"`
}

// OptionPrice is the call and put value of a contract.
type OptionPrice struct {
	Call float64 `json:"call"`
	Put  float64 `json:"put"`
}

// GreeksSet holds option sensitivities. Theta is per calendar day and
// vega per one volatility point.
type GreeksSet struct {
	CallDelta float64 `json:"call_delta"`
	PutDelta  float64 `json:"put_delta"`
	Gamma     float64 `json:"gamma"`
	CallTheta float64 `json:"call_theta"`
	PutTheta  float64 `json:"put_theta"`
	Vega      float64 `json:"vega"`
}
