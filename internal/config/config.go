// Package config handles configuration loading for pricecast.
// It supports YAML config files, .env files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. PRICECAST_API_PORT.
const EnvPrefix = "PRICECAST"

// Config represents the complete application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"  json:"engine"`
	Data    DataConfig    `mapstructure:"data"    yaml:"data"    json:"data"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"     json:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// EngineConfig holds computation defaults and resource limits.
type EngineConfig struct {
	TradingDaysPerYear  int     `mapstructure:"trading_days_per_year"  yaml:"trading_days_per_year"  json:"trading_days_per_year"`
	StatsWindow         int     `mapstructure:"stats_window"           yaml:"stats_window"           json:"stats_window"`
	SimulationWindow    int     `mapstructure:"simulation_window"      yaml:"simulation_window"      json:"simulation_window"`
	DefaultHorizonDays  int     `mapstructure:"default_horizon_days"   yaml:"default_horizon_days"   json:"default_horizon_days"`
	DefaultSimulations  int     `mapstructure:"default_simulations"    yaml:"default_simulations"    json:"default_simulations"`
	DefaultDaysToExpiry int     `mapstructure:"default_days_to_expiry" yaml:"default_days_to_expiry" json:"default_days_to_expiry"`
	DefaultRiskFreeRate float64 `mapstructure:"default_risk_free_rate" yaml:"default_risk_free_rate" json:"default_risk_free_rate"`
	MaxSimulations      int     `mapstructure:"max_simulations"        yaml:"max_simulations"        json:"max_simulations"`
	MaxHorizonDays      int     `mapstructure:"max_horizon_days"       yaml:"max_horizon_days"       json:"max_horizon_days"`
	MaxDaysToExpiry     int     `mapstructure:"max_days_to_expiry"     yaml:"max_days_to_expiry"     json:"max_days_to_expiry"`
	MaxAbsRiskFreeRate  float64 `mapstructure:"max_abs_risk_free_rate" yaml:"max_abs_risk_free_rate" json:"max_abs_risk_free_rate"`
	MaxSimulationSteps  int64   `mapstructure:"max_simulation_steps"   yaml:"max_simulation_steps"   json:"max_simulation_steps"`
	Workers             int     `mapstructure:"workers"                yaml:"workers"                json:"workers"` // 0 = GOMAXPROCS
	Seed                uint64  `mapstructure:"seed"                   yaml:"seed"                   json:"seed"`    // 0 = random per request
}

// DataConfig holds price history settings.
type DataConfig struct {
	Ticker      string `mapstructure:"ticker"       yaml:"ticker"       json:"ticker"`
	CSVPath     string `mapstructure:"csv_path"     yaml:"csv_path"     json:"csv_path"` // empty = fetch from Yahoo
	HistoryDays int    `mapstructure:"history_days" yaml:"history_days" json:"history_days"`
	CacheTTL    int    `mapstructure:"cache_ttl"    yaml:"cache_ttl"    json:"cache_ttl"` // seconds
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"        json:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"       json:"format"` // "text" or "json"
	Output     string `mapstructure:"output"       yaml:"output"       json:"output"` // "stdout", "file" or "both"
	FilePath   string `mapstructure:"file_path"    yaml:"file_path"    json:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"  json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"  json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress"     yaml:"compress"     json:"compress"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.pricecast/config.yaml (home directory)
//  3. /etc/pricecast/config.yaml (system)
//
// A .env file in the working directory is read first, then environment
// variables override config file values.
// Format: PRICECAST_<SECTION>_<KEY>, e.g., PRICECAST_ENGINE_MAX_SIMULATIONS
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".pricecast"))
	v.AddConfigPath("/etc/pricecast")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in defaults without reading files or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.trading_days_per_year", 252)
	v.SetDefault("engine.stats_window", 30)
	v.SetDefault("engine.simulation_window", 60)
	v.SetDefault("engine.default_horizon_days", 30)
	v.SetDefault("engine.default_simulations", 1000)
	v.SetDefault("engine.default_days_to_expiry", 30)
	v.SetDefault("engine.default_risk_free_rate", 0.05)
	v.SetDefault("engine.max_simulations", 100000)
	v.SetDefault("engine.max_horizon_days", 3650)
	v.SetDefault("engine.max_days_to_expiry", 3650)
	v.SetDefault("engine.max_abs_risk_free_rate", 1.0)
	v.SetDefault("engine.max_simulation_steps", 50000000)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.seed", 0)

	// Data defaults
	v.SetDefault("data.ticker", "NVDA")
	v.SetDefault("data.csv_path", "")
	v.SetDefault("data.history_days", 365)
	v.SetDefault("data.cache_ttl", 900) // 15 minutes

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "logs/pricecast.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	e := c.Engine
	positive("engine.trading_days_per_year", int64(e.TradingDaysPerYear))
	positive("engine.default_horizon_days", int64(e.DefaultHorizonDays))
	positive("engine.default_simulations", int64(e.DefaultSimulations))
	positive("engine.max_simulations", int64(e.MaxSimulations))
	positive("engine.max_horizon_days", int64(e.MaxHorizonDays))
	positive("engine.max_days_to_expiry", int64(e.MaxDaysToExpiry))
	positive("engine.max_simulation_steps", e.MaxSimulationSteps)
	if e.StatsWindow < 2 {
		errs = append(errs, fmt.Errorf("engine.stats_window must be at least 2, got %d", e.StatsWindow))
	}
	if e.SimulationWindow < 2 {
		errs = append(errs, fmt.Errorf("engine.simulation_window must be at least 2, got %d", e.SimulationWindow))
	}
	if e.DefaultDaysToExpiry < 0 {
		errs = append(errs, fmt.Errorf("engine.default_days_to_expiry must be non-negative, got %d", e.DefaultDaysToExpiry))
	}
	if e.DefaultSimulations > e.MaxSimulations {
		errs = append(errs, fmt.Errorf("engine.default_simulations %d exceeds engine.max_simulations %d",
			e.DefaultSimulations, e.MaxSimulations))
	}
	if !(e.MaxAbsRiskFreeRate > 0) {
		errs = append(errs, fmt.Errorf("engine.max_abs_risk_free_rate must be positive, got %v", e.MaxAbsRiskFreeRate))
	} else if math.Abs(e.DefaultRiskFreeRate) > e.MaxAbsRiskFreeRate {
		errs = append(errs, fmt.Errorf("engine.default_risk_free_rate %v exceeds engine.max_abs_risk_free_rate %v",
			e.DefaultRiskFreeRate, e.MaxAbsRiskFreeRate))
	}
	if e.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be non-negative, got %d", e.Workers))
	}

	positive("data.history_days", int64(c.Data.HistoryDays))
	if c.Data.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("data.cache_ttl must be non-negative, got %d", c.Data.CacheTTL))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
	}

	switch c.Logging.Output {
	case "", "stdout", "file", "both":
	default:
		errs = append(errs, fmt.Errorf("logging.output must be stdout, file or both, got %q", c.Logging.Output))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Dump renders the configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// SaveToFile writes cfg as YAML to path, creating parent directories.
func SaveToFile(cfg *Config, path string) error {
	out, err := Dump(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}

// loadDotEnv reads .env from the working directory if present. Variables that
// are already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
