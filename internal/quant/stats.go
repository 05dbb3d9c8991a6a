package quant

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Percentile returns the p-th percentile (0..100) of ascending data using
// linear interpolation between closest ranks: rank h = p/100 * (n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}

	h := p / 100 * float64(n-1)
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
