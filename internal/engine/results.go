package engine

// StatsResult is the volatility_only payload. The 30d field names are kept for
// compatibility even when a different window is requested.
type StatsResult struct {
	CurrentPrice  float64 `json:"current_price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	High30d       float64 `json:"high_30d"`
	Low30d        float64 `json:"low_30d"`
	AvgVolume30d  int64   `json:"avg_volume_30d"`
	Volatility    float64 `json:"volatility"`
}

// MonteCarloResult is the monte_carlo payload.
type MonteCarloResult struct {
	MeanPrice         float64     `json:"mean_price"`
	MedianPrice       float64     `json:"median_price"`
	StdPrice          float64     `json:"std_price"`
	Confidence95Lower float64     `json:"confidence_95_lower"`
	Confidence95Upper float64     `json:"confidence_95_upper"`
	Confidence68Lower float64     `json:"confidence_68_lower"`
	Confidence68Upper float64     `json:"confidence_68_upper"`
	PricePaths        [][]float64 `json:"price_paths"`
	CurrentPrice      float64     `json:"current_price"`
	Days              int         `json:"days"`
	Simulations       int         `json:"simulations"`
	Volatility        float64     `json:"volatility"`
	Drift             float64     `json:"drift"`
}

// Greeks is the nested greeks object of the black_scholes payload.
type Greeks struct {
	CallDelta float64 `json:"call_delta"`
	PutDelta  float64 `json:"put_delta"`
	Gamma     float64 `json:"gamma"`
	CallTheta float64 `json:"call_theta"`
	PutTheta  float64 `json:"put_theta"`
	Vega      float64 `json:"vega"`
}

// BlackScholesResult is the black_scholes payload.
type BlackScholesResult struct {
	CallPrice    float64 `json:"call_price"`
	PutPrice     float64 `json:"put_price"`
	Greeks       Greeks  `json:"greeks"`
	CurrentPrice float64 `json:"current_price"`
	StrikePrice  float64 `json:"strike_price"`
	DaysToExpiry int     `json:"days_to_expiry"`
	RiskFreeRate float64 `json:"risk_free_rate"`
	Volatility   float64 `json:"volatility"`
}

// Result pairs a computed payload with the method that produced it.
// Payload is one of *StatsResult, *MonteCarloResult or *BlackScholesResult.
type Result struct {
	Method  Method `json:"method"`
	Payload any    `json:"payload"`
}
