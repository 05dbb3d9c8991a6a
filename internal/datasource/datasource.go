// Package datasource loads daily price history for the engine. It provides a
// Yahoo Finance chart client, CSV import and export, and a Store that keeps
// per-ticker series and hands out immutable snapshots.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seenimoa/pricecast/internal/infra"
	"github.com/seenimoa/pricecast/pkg/models"
)

// HistorySource fetches daily bars for a ticker over a date range.
type HistorySource interface {
	// Name returns the human-readable name of this data source.
	Name() string

	// GetHistoricalData returns bars for ticker between from and to,
	// ascending by date.
	GetHistoricalData(ctx context.Context, ticker string, from, to time.Time, tf models.Timeframe) ([]models.OHLCV, error)
}

// --- Sentinel errors ---

// ErrNotSupported is returned when a source cannot serve a request.
var ErrNotSupported = errors.New("operation not supported by this data source")

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrRateLimited is returned when a source rate-limits the request.
var ErrRateLimited = errors.New("rate limited by data source")

// ErrNoData is returned when a source or file yields no usable bars.
var ErrNoData = errors.New("no price data")

// classifyHTTP maps upstream status codes onto the sentinel errors.
func classifyHTTP(err error, ticker string) error {
	var httpErr *infra.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	switch httpErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, ticker)
	}
	return err
}
