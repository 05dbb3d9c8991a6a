package models

import (
	"encoding/json"
	"testing"
	"time"
)

func makeSeries(closes ...float64) PriceSeries {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = OHLCV{Timestamp: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return PriceSeries{Ticker: "TEST", Bars: bars}
}

// ── OHLCV Tests ──

func TestOHLCVTimestamp(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	bar := OHLCV{
		Timestamp: now,
		Open:      180.0,
		High:      184.5,
		Low:       179.2,
		Close:     183.1,
		Volume:    5_000_000,
	}
	data, err := json.Marshal(bar)
	if err != nil {
		t.Fatalf("json.Marshal(OHLCV) error: %v", err)
	}
	var decoded OHLCV
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal(OHLCV) error: %v", err)
	}
	if !decoded.Timestamp.Equal(now) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, now)
	}
	if decoded.Volume != bar.Volume {
		t.Errorf("Volume: got %d, want %d", decoded.Volume, bar.Volume)
	}
}

func TestTimeframeConstants(t *testing.T) {
	timeframes := map[Timeframe]string{
		Timeframe1Hour: "1h",
		Timeframe1Day:  "1d",
		Timeframe1Week: "1w",
		Timeframe1Mon:  "1M",
	}
	for tf, expected := range timeframes {
		if string(tf) != expected {
			t.Errorf("Timeframe %v: got %q, want %q", tf, string(tf), expected)
		}
	}
}

// ── PriceSeries Tests ──

func TestPriceSeriesLast(t *testing.T) {
	if _, ok := (PriceSeries{}).Last(); ok {
		t.Error("empty series should have no last bar")
	}
	last, ok := makeSeries(1, 2, 3).Last()
	if !ok || last.Close != 3 {
		t.Errorf("Last() = %v, %v", last.Close, ok)
	}
}

func TestPriceSeriesLastBars(t *testing.T) {
	s := makeSeries(10, 11, 12, 13, 14)

	tests := []struct {
		n    int
		want []float64
	}{
		{0, nil},
		{-1, nil},
		{2, []float64{13, 14}},
		{5, []float64{10, 11, 12, 13, 14}},
		{9, []float64{10, 11, 12, 13, 14}},
	}
	for _, tt := range tests {
		got := s.LastCloses(tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("LastCloses(%d) len = %d, want %d", tt.n, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("LastCloses(%d)[%d] = %v, want %v", tt.n, i, got[i], tt.want[i])
			}
		}
	}
}

func TestPriceSeriesSnapshotIsIndependent(t *testing.T) {
	s := makeSeries(1, 2, 3)
	snap := s.Snapshot()
	s.Bars[0].Close = 99

	if snap.Bars[0].Close != 1 {
		t.Error("snapshot shares storage with the source series")
	}
	bars := snap.LastBars(1)
	bars[0].Close = 42
	if snap.Bars[2].Close != 3 {
		t.Error("LastBars shares storage with the series")
	}
}

func TestPriceSeriesValidate(t *testing.T) {
	ok := makeSeries(1, 2, 3)
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	dup := makeSeries(1, 2, 3)
	dup.Bars[2].Timestamp = dup.Bars[1].Timestamp
	if err := dup.Validate(); err == nil {
		t.Error("duplicate dates should fail")
	}

	unordered := makeSeries(1, 2, 3)
	unordered.Bars[0], unordered.Bars[2] = unordered.Bars[2], unordered.Bars[0]
	if err := unordered.Validate(); err == nil {
		t.Error("descending dates should fail")
	}
}
