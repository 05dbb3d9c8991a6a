package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/seenimoa/pricecast/internal/infra"
	"github.com/seenimoa/pricecast/pkg/models"
)

// DefaultYahooBaseURL is the Yahoo Finance chart API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YFinanceConfig configures a YFinance client. Zero values take defaults.
type YFinanceConfig struct {
	BaseURL    string
	CacheTTL   time.Duration
	HTTPClient *http.Client
	RateLimit  int // requests per second
}

// YFinance fetches daily history from the Yahoo Finance v8 chart API.
type YFinance struct {
	baseURL string
	client  *http.Client
	cache   *infra.Cache[[]models.OHLCV]
	limiter *infra.RateLimiter
}

// NewYFinance creates a Yahoo Finance data source.
func NewYFinance(cfg YFinanceConfig) *YFinance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYahooBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = infra.NewHTTPClient(30 * time.Second)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	return &YFinance{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.HTTPClient,
		cache:   infra.NewCache[[]models.OHLCV](cfg.CacheTTL),
		limiter: infra.NewRateLimiter(cfg.RateLimit, time.Second/time.Duration(cfg.RateLimit)),
	}
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	ExchangeTimezone   string  `json:"exchangeTimezoneName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// GetHistoricalData returns bars from the Yahoo chart API. Bars without a
// close (holidays, halted sessions) are dropped.
func (y *YFinance) GetHistoricalData(ctx context.Context, ticker string, from, to time.Time, tf models.Timeframe) ([]models.OHLCV, error) {
	symbol := NormalizeTicker(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrTickerNotFound)
	}

	cacheKey := fmt.Sprintf("hist:%s:%s:%s:%s", symbol,
		from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly), tf)
	if cached, ok := y.cache.Get(cacheKey); ok {
		return slices.Clone(cached), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s&events=history",
		y.baseURL, url.PathEscape(symbol), from.Unix(), to.Unix(), yfInterval(tf))

	body, err := infra.DoGet(ctx, y.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yfinance chart %s: %w", symbol, classifyHTTP(err, symbol))
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yfinance chart: %w", err)
	}
	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
		}
		return nil, fmt.Errorf("yfinance chart error: %s", e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}

	candles := completeBars(parseYFCandles(resp.Chart.Result[0]))
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	y.cache.Cleanup()
	y.cache.Set(cacheKey, candles)
	return slices.Clone(candles), nil
}

// FetchSeries returns the last days calendar days of daily bars for ticker,
// ending now.
func FetchSeries(ctx context.Context, src HistorySource, ticker string, days int) (models.PriceSeries, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	bars, err := src.GetHistoricalData(ctx, ticker, from, to, models.Timeframe1Day)
	if err != nil {
		return models.PriceSeries{}, err
	}
	s := models.PriceSeries{Ticker: NormalizeTicker(ticker), Bars: bars}
	if err := s.Validate(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("%s from %s: %w", s.Ticker, src.Name(), err)
	}
	return s, nil
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// --- Helpers ---

func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := models.OHLCV{
			Timestamp: time.Unix(ts, 0).UTC(),
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			c.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			c.AdjClose = *adjCloses[i]
		}
		candles = append(candles, c)
	}
	return candles
}

// completeBars drops bars without a positive close, which the engine cannot use.
func completeBars(bars []models.OHLCV) []models.OHLCV {
	out := bars[:0]
	for _, b := range bars {
		if b.Close > 0 {
			out = append(out, b)
		}
	}
	return out
}

func yfInterval(tf models.Timeframe) string {
	switch tf {
	case models.Timeframe1Hour:
		return "1h"
	case models.Timeframe1Day:
		return "1d"
	case models.Timeframe1Week:
		return "1wk"
	case models.Timeframe1Mon:
		return "1mo"
	default:
		return "1d"
	}
}
