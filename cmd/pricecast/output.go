package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/seenimoa/pricecast/internal/engine"
	"github.com/seenimoa/pricecast/pkg/utils"
)

const rule = "═══════════════════════════════════════"

// printResult writes a human-readable rendering of res.
func printResult(w io.Writer, ticker string, res *engine.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(label, value string) {
		fmt.Fprintf(tw, "  %s\t%s\n", label+":", value)
	}
	price := func(v float64) string { return utils.FormatPrice(v, 2) }

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %s | %s\n", ticker, strings.ReplaceAll(string(res.Method), "_", " "))
	fmt.Fprintln(w, rule)

	switch r := res.Payload.(type) {
	case *engine.StatsResult:
		row("Current price", price(r.CurrentPrice))
		row("Change", fmt.Sprintf("%s (%s)", price(r.Change), utils.FormatPct(r.ChangePercent)))
		row("Window high", price(r.High30d))
		row("Window low", price(r.Low30d))
		row("Avg volume", utils.FormatVolume(r.AvgVolume30d))
		row("Volatility", utils.FormatRate(r.Volatility))

	case *engine.MonteCarloResult:
		row("Current price", price(r.CurrentPrice))
		row("Horizon", fmt.Sprintf("%d trading days", r.Days))
		row("Simulations", fmt.Sprintf("%d", r.Simulations))
		row("Volatility", utils.FormatRate(r.Volatility))
		row("Drift", utils.FormatRate(r.Drift))
		row("Mean", price(r.MeanPrice))
		row("Median", price(r.MedianPrice))
		row("Std dev", price(r.StdPrice))
		row("68% interval", price(r.Confidence68Lower)+" – "+price(r.Confidence68Upper))
		row("95% interval", price(r.Confidence95Lower)+" – "+price(r.Confidence95Upper))

	case *engine.BlackScholesResult:
		row("Spot", price(r.CurrentPrice))
		row("Strike", price(r.StrikePrice))
		row("Days to expiry", fmt.Sprintf("%d", r.DaysToExpiry))
		row("Risk-free rate", utils.FormatRate(r.RiskFreeRate))
		row("Volatility", utils.FormatRate(r.Volatility))
		row("Call", utils.FormatPrice(r.CallPrice, 4))
		row("Put", utils.FormatPrice(r.PutPrice, 4))
		g := r.Greeks
		row("Delta (call/put)", utils.FormatPrice(g.CallDelta, 4)+" / "+utils.FormatPrice(g.PutDelta, 4))
		row("Gamma", utils.FormatPrice(g.Gamma, 6))
		row("Theta/day (call/put)", utils.FormatPrice(g.CallTheta, 4)+" / "+utils.FormatPrice(g.PutTheta, 4))
		row("Vega (per 1%)", utils.FormatPrice(g.Vega, 4))

	default:
		return fmt.Errorf("unexpected result type %T", res.Payload)
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, rule)
	return err
}
