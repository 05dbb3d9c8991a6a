// pricecast: price statistics, Monte Carlo forecasts and Black-Scholes
// option pricing over daily price history.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/pricecast/api"
	"github.com/seenimoa/pricecast/internal/config"
	"github.com/seenimoa/pricecast/internal/datasource"
	"github.com/seenimoa/pricecast/internal/engine"
	"github.com/seenimoa/pricecast/internal/logging"
	"github.com/seenimoa/pricecast/internal/metrics"
	"github.com/seenimoa/pricecast/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
	logOut io.Closer
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pricecast",
	Short: "pricecast: price statistics, forecasts and option pricing",
	Long: `pricecast computes summary statistics and historical volatility,
simulates future prices with geometric Brownian motion, and prices European
options with Black-Scholes, from daily price history loaded from CSV or
fetched from Yahoo Finance.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}

		logger, logOut, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logOut != nil {
			return logOut.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pricecast %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Compute Command ---

var computeCmd = &cobra.Command{
	Use:   "compute <method>",
	Short: "Run a computation method",
	Long: `Run one computation method against a ticker's price history.

Methods: volatility_only, monte_carlo, black_scholes

Examples:
  pricecast compute volatility_only --csv data/NVDA_2y.csv
  pricecast compute monte_carlo --ticker NVDA --days 60 --simulations 5000 --seed 42
  pricecast compute black_scholes --strike 150 --expiry 45 --rate 0.045 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := engine.ParseMethod(args[0])
		if err != nil {
			return err
		}
		params, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := newStore(nil)
		if err != nil {
			return err
		}
		ticker, _ := cmd.Flags().GetString("ticker")
		if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
			series, err := datasource.LoadCSVFile(csvPath, ticker)
			if err != nil {
				return err
			}
			if err := store.Pin(series); err != nil {
				return err
			}
			ticker = series.Ticker
		}
		if ticker == "" {
			ticker = cfg.Data.Ticker
		}

		series, err := store.Series(ctx, ticker)
		if err != nil {
			return err
		}

		eng := engine.New(engineConfig(cfg.Engine))
		start := time.Now()
		res, err := eng.Compute(ctx, method, series, params)
		if err != nil {
			return err
		}
		logger.Debug("computation complete", "method", method, "ticker", series.Ticker, "elapsed", time.Since(start))

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.Payload)
		}
		return printResult(cmd.OutOrStdout(), series.Ticker, res)
	},
}

func init() {
	f := computeCmd.Flags()
	f.String("ticker", "", "ticker symbol (default: data.ticker)")
	f.String("csv", "", "load price history from a CSV file instead of fetching")
	f.Int("window", 0, "trailing window in trading days")
	f.Int("days", 0, "monte_carlo: forecast horizon in trading days")
	f.Int("simulations", 0, "monte_carlo: number of simulated paths")
	f.Uint64("seed", 0, "monte_carlo: random seed for reproducible runs")
	f.Float64("strike", 0, "black_scholes: strike price (default: at the money)")
	f.Int("expiry", 0, "black_scholes: calendar days to expiry")
	f.Float64("rate", 0, "black_scholes: annual risk-free rate")
	f.Bool("json", false, "print the result as JSON")
}

// paramsFromFlags maps explicitly set flags onto engine parameters.
func paramsFromFlags(cmd *cobra.Command) (engine.Params, error) {
	var p engine.Params
	f := cmd.Flags()
	intFlag := func(name string) (*int, error) {
		if !f.Changed(name) {
			return nil, nil
		}
		v, err := f.GetInt(name)
		return &v, err
	}

	var err error
	if p.Window, err = intFlag("window"); err != nil {
		return p, err
	}
	if p.Days, err = intFlag("days"); err != nil {
		return p, err
	}
	if p.Simulations, err = intFlag("simulations"); err != nil {
		return p, err
	}
	if p.DaysToExpiry, err = intFlag("expiry"); err != nil {
		return p, err
	}
	if f.Changed("seed") {
		v, err := f.GetUint64("seed")
		if err != nil {
			return p, err
		}
		p.Seed = &v
	}
	if f.Changed("strike") {
		v, err := f.GetFloat64("strike")
		if err != nil {
			return p, err
		}
		p.StrikePrice = &v
	}
	if f.Changed("rate") {
		v, err := f.GetFloat64("rate")
		if err != nil {
			return p, err
		}
		p.RiskFreeRate = &v
	}
	return p, nil
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch <ticker>...",
	Short: "Download daily price history to CSV",
	Long: `Download daily OHLCV history from Yahoo Finance and write one CSV per
ticker, named <TICKER>_<N>d.csv, into the output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		outDir, _ := cmd.Flags().GetString("out")
		if days <= 0 {
			days = cfg.Data.HistoryDays
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := datasource.NewStore(datasource.StoreConfig{
			Source:      newYFinance(),
			HistoryDays: days,
		})
		all, err := store.FetchMany(ctx, args)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		for _, ticker := range store.Tickers() {
			series := all[ticker]
			path := filepath.Join(outDir, ticker+"_"+strconv.Itoa(days)+"d.csv")
			if err := writeCSVFile(path, series); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %4d bars → %s\n", ticker, series.Len(), path)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().Int("days", 0, "calendar days of history (default: data.history_days)")
	fetchCmd.Flags().String("out", "data", "output directory")
}

func writeCSVFile(path string, series models.PriceSeries) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := datasource.WriteCSV(f, series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		m := metrics.New()
		store, err := newStore(m)
		if err != nil {
			return err
		}
		if cfg.Data.CSVPath != "" {
			series, err := datasource.LoadCSVFile(cfg.Data.CSVPath, cfg.Data.Ticker)
			if err != nil {
				return err
			}
			if err := store.Pin(series); err != nil {
				return err
			}
			logger.Info("loaded price history", "ticker", series.Ticker, "bars", series.Len(), "path", cfg.Data.CSVPath)
		}

		srv, err := api.NewServer(api.Options{
			Config:  cfg,
			Engine:  engine.New(engineConfig(cfg.Engine)),
			Store:   store,
			Metrics: m,
			Logger:  logger,
			Version: version,
		})
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		return srv.ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: api.port)")
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the effective configuration as YAML.

With --write, save it to a file instead, e.g. to seed ./config/config.yaml:
  pricecast config --write config/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("write")
		return writeConfig(cmd.OutOrStdout(), cfg, path)
	},
}

func init() {
	configCmd.Flags().String("write", "", "write the configuration to this file instead of stdout")
}

// writeConfig prints c to w, or saves it to path when one is given.
func writeConfig(w io.Writer, c *config.Config, path string) error {
	if path == "" {
		out, err := config.Dump(c)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	if err := config.SaveToFile(c, path); err != nil {
		return err
	}
	fmt.Fprintf(w, "configuration written to %s\n", path)
	return nil
}

// --- Wiring ---

// engineConfig maps the engine config section onto engine.Config.
func engineConfig(c config.EngineConfig) engine.Config {
	ec := engine.Config{
		TradingDaysPerYear:  c.TradingDaysPerYear,
		StatsWindow:         c.StatsWindow,
		SimulationWindow:    c.SimulationWindow,
		DefaultHorizonDays:  c.DefaultHorizonDays,
		DefaultSimulations:  c.DefaultSimulations,
		DefaultDaysToExpiry: c.DefaultDaysToExpiry,
		DefaultRiskFreeRate: c.DefaultRiskFreeRate,
		MaxSimulations:      c.MaxSimulations,
		MaxHorizonDays:      c.MaxHorizonDays,
		MaxDaysToExpiry:     c.MaxDaysToExpiry,
		MaxAbsRiskFreeRate:  c.MaxAbsRiskFreeRate,
		MaxSimulationSteps:  c.MaxSimulationSteps,
		Workers:             c.Workers,
	}
	if c.Seed != 0 {
		ec.Seeder = engine.FixedSeed(c.Seed)
	}
	return ec
}

func newYFinance() *datasource.YFinance {
	return datasource.NewYFinance(datasource.YFinanceConfig{
		CacheTTL: time.Duration(cfg.Data.CacheTTL) * time.Second,
	})
}

// newStore builds the series store backed by Yahoo Finance. m may be nil.
func newStore(m *metrics.Metrics) (*datasource.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return datasource.NewStore(datasource.StoreConfig{
		Source:      newYFinance(),
		HistoryDays: cfg.Data.HistoryDays,
		MaxAge:      time.Duration(cfg.Data.CacheTTL) * time.Second,
		OnFetch:     m.ObserveFetch,
	}), nil
}
