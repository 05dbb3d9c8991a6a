// Package models defines the core data structures used throughout pricecast.
package models

import (
	"fmt"
	"time"
)

// OHLCV represents a single daily bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	AdjClose  float64   `json:"adj_close,omitempty"`
}

// Timeframe represents chart timeframe for OHLCV data.
type Timeframe string

const (
	Timeframe1Hour Timeframe = "1h"
	Timeframe1Day  Timeframe = "1d"
	Timeframe1Week Timeframe = "1w"
	Timeframe1Mon  Timeframe = "1M"
)

// PriceSeries is an ordered (ascending by date) sequence of bars for one ticker.
// Consumers treat it as read-only; window accessors return copies.
type PriceSeries struct {
	Ticker string  `json:"ticker"`
	Bars   []OHLCV `json:"bars"`
}

// Len returns the number of bars in the series.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Last returns the most recent bar, or false for an empty series.
func (s PriceSeries) Last() (OHLCV, bool) {
	if len(s.Bars) == 0 {
		return OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// LastBars returns a copy of the trailing n bars. If fewer than n bars exist,
// all bars are returned.
func (s PriceSeries) LastBars(n int) []OHLCV {
	if n <= 0 {
		return nil
	}
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	out := make([]OHLCV, n)
	copy(out, s.Bars[len(s.Bars)-n:])
	return out
}

// LastCloses returns the closing prices of the trailing n bars.
func (s PriceSeries) LastCloses(n int) []float64 {
	bars := s.LastBars(n)
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Snapshot returns a deep copy that is safe to hand to another goroutine.
func (s PriceSeries) Snapshot() PriceSeries {
	return PriceSeries{Ticker: s.Ticker, Bars: s.LastBars(len(s.Bars))}
}

// Validate checks that bars are strictly ascending by date.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		prev, cur := s.Bars[i-1].Timestamp, s.Bars[i].Timestamp
		if cur.Equal(prev) {
			return fmt.Errorf("duplicate bar date %s", cur.Format("2006-01-02"))
		}
		if cur.Before(prev) {
			return fmt.Errorf("bars out of order at %s", cur.Format("2006-01-02"))
		}
	}
	return nil
}
