package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/pricecast/pkg/models"
)

func TestYfInterval(t *testing.T) {
	tests := []struct {
		tf   models.Timeframe
		want string
	}{
		{models.Timeframe1Hour, "1h"},
		{models.Timeframe1Day, "1d"},
		{models.Timeframe1Week, "1wk"},
		{models.Timeframe1Mon, "1mo"},
		{models.Timeframe("unknown"), "1d"},
	}
	for _, tt := range tests {
		got := yfInterval(tt.tf)
		if got != tt.want {
			t.Errorf("yfInterval(%q) = %q, want %q", tt.tf, got, tt.want)
		}
	}
}

func TestParseYFCandlesEmpty(t *testing.T) {
	candles := parseYFCandles(yfChartResult{})
	if candles != nil {
		t.Fatalf("expected nil candles for empty result, got %d", len(candles))
	}
}

func TestParseYFCandles(t *testing.T) {
	open, high, low, close_ := 100.0, 105.0, 98.0, 103.0
	vol := int64(1000)
	adj := 102.5

	result := yfChartResult{
		Timestamp: []int64{1700000000, 1700086400},
		Indicators: yfIndicators{
			Quote: []yfOHLCV{{
				Open:   []*float64{&open, &open},
				High:   []*float64{&high, &high},
				Low:    []*float64{&low, &low},
				Close:  []*float64{&close_, &close_},
				Volume: []*int64{&vol, &vol},
			}},
			AdjClose: []yfAdjClose{{AdjClose: []*float64{&adj, &adj}}},
		},
	}

	candles := parseYFCandles(result)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	c := candles[0]
	if c.Open != 100.0 || c.High != 105.0 || c.Low != 98.0 || c.Close != 103.0 {
		t.Errorf("OHLC mismatch: %+v", c)
	}
	if c.Volume != 1000 {
		t.Errorf("volume = %d, want 1000", c.Volume)
	}
	if c.AdjClose != 102.5 {
		t.Errorf("adjclose = %f, want 102.5", c.AdjClose)
	}
	if c.Timestamp.Location() != time.UTC {
		t.Errorf("timestamps should be UTC, got %v", c.Timestamp.Location())
	}
}

func TestCompleteBarsDropsMissingClose(t *testing.T) {
	open := 100.0
	result := yfChartResult{
		Timestamp: []int64{1700000000},
		Indicators: yfIndicators{
			Quote: []yfOHLCV{{
				Open:   []*float64{&open},
				High:   []*float64{nil},
				Low:    []*float64{nil},
				Close:  []*float64{nil},
				Volume: []*int64{nil},
			}},
		},
	}
	if got := completeBars(parseYFCandles(result)); len(got) != 0 {
		t.Fatalf("expected bar without close to be dropped, got %+v", got)
	}
}

// chartJSON renders a minimal chart response with n daily bars.
func chartJSON(symbol string, n int) string {
	ts := make([]string, n)
	closes := make([]string, n)
	vols := make([]string, n)
	start := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC).Unix()
	for i := 0; i < n; i++ {
		ts[i] = fmt.Sprint(start + int64(i)*86400)
		closes[i] = fmt.Sprintf("%.2f", 100+float64(i))
		vols[i] = fmt.Sprint(1000 + i)
	}
	arr := func(v []string) string { return "[" + strings.Join(v, ",") + "]" }
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"symbol":%q,"currency":"USD"},
"timestamp":%s,"indicators":{"quote":[{"open":%s,"high":%s,"low":%s,"close":%s,"volume":%s}]}}],"error":null}}`,
		symbol, arr(ts), arr(closes), arr(closes), arr(closes), arr(closes), arr(vols))
}

func newChartServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		switch symbol {
		case "MISSING":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
		case "BUSY":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			if r.URL.Query().Get("interval") != "1d" {
				t.Errorf("interval: got %q", r.URL.Query().Get("interval"))
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chartJSON(symbol, 40))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYFinanceGetHistoricalData(t *testing.T) {
	var hits atomic.Int32
	srv := newChartServer(t, &hits)
	yf := NewYFinance(YFinanceConfig{BaseURL: srv.URL, CacheTTL: time.Minute})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 6, 0)
	bars, err := yf.GetHistoricalData(context.Background(), " nvda ", from, to, models.Timeframe1Day)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 40 {
		t.Fatalf("got %d bars, want 40", len(bars))
	}
	if bars[39].Close != 139 || bars[0].Volume != 1000 {
		t.Errorf("unexpected bars: first=%+v last=%+v", bars[0], bars[39])
	}

	// Second call is served from cache and must not share the backing array.
	bars[0].Close = -1
	again, err := yf.GetHistoricalData(context.Background(), "NVDA", from, to, models.Timeframe1Day)
	if err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
	if again[0].Close != 100 {
		t.Errorf("cached data was mutated through a returned slice")
	}
}

func TestYFinanceCacheKeyedByDay(t *testing.T) {
	var hits atomic.Int32
	srv := newChartServer(t, &hits)
	yf := NewYFinance(YFinanceConfig{BaseURL: srv.URL, CacheTTL: time.Minute})

	to := time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC)
	for _, shift := range []time.Duration{0, 2 * time.Hour, 5*time.Hour + 30*time.Second} {
		end := to.Add(shift)
		if _, err := yf.GetHistoricalData(context.Background(), "NVDA", end.AddDate(0, 0, -90), end, models.Timeframe1Day); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("same-day windows should share a cache entry, got %d upstream hits", hits.Load())
	}

	next := to.AddDate(0, 0, 1)
	if _, err := yf.GetHistoricalData(context.Background(), "NVDA", next.AddDate(0, 0, -90), next, models.Timeframe1Day); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("next-day window should refetch, got %d upstream hits", hits.Load())
	}
}

func TestYFinanceErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newChartServer(t, &hits)
	yf := NewYFinance(YFinanceConfig{BaseURL: srv.URL})
	now := time.Now()

	_, err := yf.GetHistoricalData(context.Background(), "MISSING", now.AddDate(-1, 0, 0), now, models.Timeframe1Day)
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("MISSING: expected ErrTickerNotFound, got %v", err)
	}
	_, err = yf.GetHistoricalData(context.Background(), "BUSY", now.AddDate(-1, 0, 0), now, models.Timeframe1Day)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("BUSY: expected ErrRateLimited, got %v", err)
	}
	_, err = yf.GetHistoricalData(context.Background(), "  ", now.AddDate(-1, 0, 0), now, models.Timeframe1Day)
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("empty: expected ErrTickerNotFound, got %v", err)
	}
}

func TestFetchSeries(t *testing.T) {
	var hits atomic.Int32
	srv := newChartServer(t, &hits)
	yf := NewYFinance(YFinanceConfig{BaseURL: srv.URL})

	s, err := FetchSeries(context.Background(), yf, "aapl", 90)
	if err != nil {
		t.Fatal(err)
	}
	if s.Ticker != "AAPL" || s.Len() != 40 {
		t.Errorf("got ticker %q with %d bars", s.Ticker, s.Len())
	}
}

func TestYFinanceName(t *testing.T) {
	yf := NewYFinance(YFinanceConfig{})
	if yf.Name() != "Yahoo Finance" {
		t.Errorf("Name() = %q, want %q", yf.Name(), "Yahoo Finance")
	}
}
