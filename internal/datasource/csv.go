package datasource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/pricecast/pkg/models"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// LoadCSVFile reads a price history CSV from path. The ticker defaults to the
// file name up to the first underscore or dot, e.g. NVDA_historical_data.csv.
func LoadCSVFile(path, ticker string) (models.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("open price csv: %w", err)
	}
	defer f.Close()

	if ticker == "" {
		base := filepath.Base(path)
		if i := strings.IndexAny(base, "_."); i > 0 {
			base = base[:i]
		}
		ticker = base
	}
	s, err := LoadCSV(f, ticker)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadCSV parses daily bars. Two layouts are accepted: a plain
// Date,Open,High,Low,Close[,Adj Close],Volume table, and the yfinance export
// whose header starts with "Price" and is followed by "Ticker" and "Date"
// rows. Columns are matched by name in any order; only Close is required.
// Rows with an empty close are skipped, and bars are sorted by date.
func LoadCSV(r io.Reader, ticker string) (models.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.PriceSeries{}, ErrNoData
		}
		return models.PriceSeries{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := indexColumns(header)
	if _, ok := cols["close"]; !ok {
		return models.PriceSeries{}, fmt.Errorf("csv header %v has no Close column", header)
	}

	var bars []models.OHLCV
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.PriceSeries{}, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) == 0 || isMetaRow(rec[0]) {
			continue
		}

		bar, ok, err := parseRow(rec, cols)
		if err != nil {
			return models.PriceSeries{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		if ok {
			bars = append(bars, bar)
		}
	}
	if len(bars) == 0 {
		return models.PriceSeries{}, ErrNoData
	}

	slices.SortStableFunc(bars, func(a, b models.OHLCV) int { return a.Timestamp.Compare(b.Timestamp) })
	s := models.PriceSeries{Ticker: NormalizeTicker(ticker), Bars: bars}
	if err := s.Validate(); err != nil {
		return models.PriceSeries{}, err
	}
	return s, nil
}

// WriteCSV writes series in the plain Date,Open,High,Low,Close,Volume layout.
func WriteCSV(w io.Writer, series models.PriceSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	for _, b := range series.Bars {
		rec := []string{
			b.Timestamp.Format("2006-01-02"),
			formatPrice(b.Open),
			formatPrice(b.High),
			formatPrice(b.Low),
			formatPrice(b.Close),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// indexColumns maps lower-cased column names to positions. Column 0 is
// always the date regardless of its label.
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(h))
		name = strings.NewReplacer(" ", "", "_", "").Replace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func isMetaRow(first string) bool {
	switch strings.ToLower(strings.TrimSpace(first)) {
	case "ticker", "date", "":
		return true
	}
	return false
}

// parseRow returns ok=false for rows without a close value.
func parseRow(rec []string, cols map[string]int) (models.OHLCV, bool, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	closeStr := field("close")
	if closeStr == "" || strings.EqualFold(closeStr, "nan") {
		return models.OHLCV{}, false, nil
	}

	ts, err := parseDate(rec[0])
	if err != nil {
		return models.OHLCV{}, false, err
	}
	bar := models.OHLCV{Timestamp: ts}
	if bar.Close, err = parseFloat("close", closeStr); err != nil {
		return models.OHLCV{}, false, err
	}

	// Missing open/high/low fall back to the close.
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"adjclose", &bar.AdjClose},
	} {
		raw := field(f.name)
		if raw == "" {
			if f.name != "adjclose" {
				*f.dst = bar.Close
			}
			continue
		}
		if *f.dst, err = parseFloat(f.name, raw); err != nil {
			return models.OHLCV{}, false, err
		}
	}

	if raw := field("volume"); raw != "" {
		v, err := parseFloat("volume", raw)
		if err != nil {
			return models.OHLCV{}, false, err
		}
		bar.Volume = int64(v)
	}
	return bar, true, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", name, s)
	}
	return v, nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
