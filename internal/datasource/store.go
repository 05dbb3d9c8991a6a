package datasource

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/pricecast/pkg/models"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Source fetches series that are not pinned. Nil means only pinned
	// series are available.
	Source HistorySource

	// HistoryDays is the calendar-day span fetched per ticker.
	HistoryDays int

	// MaxAge is how long a fetched series is served before it is refetched.
	// Zero means fetched series never go stale.
	MaxAge time.Duration

	// Concurrency bounds parallel fetches in FetchMany.
	Concurrency int

	// FetchTimeout bounds a single shared fetch. The fetch runs detached
	// from any one caller, so this is its only deadline.
	FetchTimeout time.Duration

	// OnFetch, if set, is called after every fetch attempt.
	OnFetch func(source string, err error)
}

type storeEntry struct {
	series   models.PriceSeries
	loadedAt time.Time
	pinned   bool
}

// Store holds price series by ticker. Readers always receive a snapshot,
// so a refresh never changes data under a running computation.
type Store struct {
	cfg     StoreConfig
	mu      sync.RWMutex
	entries map[string]storeEntry
	flight  singleflight.Group
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Store{
		cfg:     cfg,
		entries: make(map[string]storeEntry),
		now:     time.Now,
	}
}

// Pin stores a series that is never refetched, e.g. one loaded from CSV.
func (s *Store) Pin(series models.PriceSeries) error {
	if err := series.Validate(); err != nil {
		return err
	}
	key := NormalizeTicker(series.Ticker)
	snap := series.Snapshot()
	snap.Ticker = key

	s.mu.Lock()
	s.entries[key] = storeEntry{series: snap, loadedAt: s.now(), pinned: true}
	s.mu.Unlock()
	return nil
}

// Series returns a snapshot for ticker, fetching it if absent or stale.
func (s *Store) Series(ctx context.Context, ticker string) (models.PriceSeries, error) {
	key := NormalizeTicker(ticker)
	if key == "" {
		return models.PriceSeries{}, fmt.Errorf("%w: empty ticker", ErrTickerNotFound)
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok && (e.pinned || !s.stale(e)) {
		return e.series.Snapshot(), nil
	}
	return s.Refresh(ctx, key)
}

// Refresh fetches ticker from the source and replaces any unpinned entry.
// Concurrent refreshes of the same ticker share one fetch. A caller whose
// ctx ends stops waiting; the shared fetch carries on for the others.
func (s *Store) Refresh(ctx context.Context, ticker string) (models.PriceSeries, error) {
	key := NormalizeTicker(ticker)
	if s.cfg.Source == nil {
		return models.PriceSeries{}, fmt.Errorf("%w: no history source for %s", ErrNotSupported, key)
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		series, err := FetchSeries(fctx, s.cfg.Source, key, s.cfg.HistoryDays)
		if s.cfg.OnFetch != nil {
			s.cfg.OnFetch(s.cfg.Source.Name(), err)
		}
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if cur, ok := s.entries[key]; !ok || !cur.pinned {
			s.entries[key] = storeEntry{series: series, loadedAt: s.now()}
		}
		s.mu.Unlock()
		return series, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return models.PriceSeries{}, res.Err
		}
		return res.Val.(models.PriceSeries).Snapshot(), nil
	case <-ctx.Done():
		return models.PriceSeries{}, ctx.Err()
	}
}

// FetchMany loads several tickers concurrently. It fails on the first error.
func (s *Store) FetchMany(ctx context.Context, tickers []string) (map[string]models.PriceSeries, error) {
	out := make(map[string]models.PriceSeries, len(tickers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, t := range tickers {
		g.Go(func() error {
			series, err := s.Series(gctx, t)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", NormalizeTicker(t), err)
			}
			mu.Lock()
			out[series.Ticker] = series
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Tickers lists stored tickers in sorted order.
func (s *Store) Tickers() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (s *Store) stale(e storeEntry) bool {
	return s.cfg.MaxAge > 0 && s.now().Sub(e.loadedAt) > s.cfg.MaxAge
}
