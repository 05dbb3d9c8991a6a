package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/pricecast/pkg/models"
)

// fakeSource serves generated bars and counts calls per ticker.
type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	delay time.Duration
	total atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) GetHistoricalData(ctx context.Context, ticker string, from, to time.Time, _ models.Timeframe) ([]models.OHLCV, error) {
	f.total.Add(1)
	f.mu.Lock()
	f.calls[ticker]++
	err := f.fail[ticker]
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	bars := make([]models.OHLCV, 10)
	for i := range bars {
		bars[i] = models.OHLCV{Timestamp: from.AddDate(0, 0, i), Close: 10 + float64(i)}
	}
	return bars, nil
}

func (f *fakeSource) callsFor(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

func TestStorePinnedSeries(t *testing.T) {
	store := NewStore(StoreConfig{})
	pinned := models.PriceSeries{Ticker: "nvda", Bars: []models.OHLCV{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 1},
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 2},
	}}
	if err := store.Pin(pinned); err != nil {
		t.Fatal(err)
	}

	got, err := store.Series(context.Background(), "NVDA")
	if err != nil {
		t.Fatal(err)
	}
	if got.Ticker != "NVDA" || got.Len() != 2 {
		t.Fatalf("unexpected series %+v", got)
	}

	// Snapshots are independent of the stored series.
	got.Bars[0].Close = 99
	again, _ := store.Series(context.Background(), "nvda")
	if again.Bars[0].Close != 1 {
		t.Error("snapshot mutation leaked into the store")
	}
	pinned.Bars[1].Close = 42
	again, _ = store.Series(context.Background(), "nvda")
	if again.Bars[1].Close != 2 {
		t.Error("caller mutation after Pin leaked into the store")
	}
}

func TestStorePinRejectsUnsorted(t *testing.T) {
	store := NewStore(StoreConfig{})
	err := store.Pin(models.PriceSeries{Ticker: "X", Bars: []models.OHLCV{
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}})
	if err == nil {
		t.Fatal("expected error for out-of-order bars")
	}
}

func TestStoreWithoutSource(t *testing.T) {
	store := NewStore(StoreConfig{})
	if _, err := store.Series(context.Background(), "AAPL"); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if _, err := store.Series(context.Background(), " "); !errors.Is(err, ErrTickerNotFound) {
		t.Fatalf("expected ErrTickerNotFound, got %v", err)
	}
}

func TestStoreFetchAndStaleness(t *testing.T) {
	src := newFakeSource()
	var fetched []error
	store := NewStore(StoreConfig{
		Source:  src,
		MaxAge:  time.Minute,
		OnFetch: func(_ string, err error) { fetched = append(fetched, err) },
	})
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if _, err := store.Series(context.Background(), "msft"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Series(context.Background(), "MSFT"); err != nil {
		t.Fatal(err)
	}
	if n := src.callsFor("MSFT"); n != 1 {
		t.Fatalf("fresh entry should be reused, got %d fetches", n)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Series(context.Background(), "MSFT"); err != nil {
		t.Fatal(err)
	}
	if n := src.callsFor("MSFT"); n != 2 {
		t.Fatalf("stale entry should be refetched, got %d fetches", n)
	}
	if len(fetched) != 2 {
		t.Errorf("OnFetch called %d times, want 2", len(fetched))
	}
	if got := store.Tickers(); len(got) != 1 || got[0] != "MSFT" {
		t.Errorf("Tickers() = %v", got)
	}
}

func TestStoreRefreshKeepsPinned(t *testing.T) {
	src := newFakeSource()
	store := NewStore(StoreConfig{Source: src})
	pinned := models.PriceSeries{Ticker: "X", Bars: []models.OHLCV{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 1},
	}}
	if err := store.Pin(pinned); err != nil {
		t.Fatal(err)
	}
	fresh, err := store.Refresh(context.Background(), "X")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Len() != 10 {
		t.Errorf("Refresh should return fetched data, got %d bars", fresh.Len())
	}
	kept, _ := store.Series(context.Background(), "X")
	if kept.Len() != 1 {
		t.Errorf("pinned series must not be replaced, got %d bars", kept.Len())
	}
}

func TestStoreFetchMany(t *testing.T) {
	src := newFakeSource()
	src.delay = 5 * time.Millisecond
	store := NewStore(StoreConfig{Source: src, Concurrency: 2})

	got, err := store.FetchMany(context.Background(), []string{"aapl", "msft", "nvda", "goog"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d series, want 4", len(got))
	}
	for _, k := range []string{"AAPL", "MSFT", "NVDA", "GOOG"} {
		if got[k].Len() != 10 {
			t.Errorf("%s: got %d bars", k, got[k].Len())
		}
	}
}

func TestStoreFetchManyError(t *testing.T) {
	src := newFakeSource()
	src.fail["BAD"] = ErrTickerNotFound
	store := NewStore(StoreConfig{Source: src})

	_, err := store.FetchMany(context.Background(), []string{"good", "bad"})
	if !errors.Is(err, ErrTickerNotFound) {
		t.Fatalf("expected ErrTickerNotFound, got %v", err)
	}
}

func TestStoreConcurrentRefreshSharesFetch(t *testing.T) {
	src := newFakeSource()
	src.delay = 20 * time.Millisecond
	store := NewStore(StoreConfig{Source: src})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Series(context.Background(), "TSLA"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := src.callsFor("TSLA"); n > 2 {
		t.Errorf("expected concurrent loads to share a fetch, got %d", n)
	}
}

func TestStoreCancelledCallerDoesNotFailWaiters(t *testing.T) {
	src := newFakeSource()
	src.delay = 50 * time.Millisecond
	store := NewStore(StoreConfig{Source: src})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.Refresh(first, "AMD")
		firstErr <- err
	}()

	// Let the first caller own the in-flight fetch before joining it.
	deadline := time.Now().Add(time.Second)
	for src.total.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	secondDone := make(chan error, 1)
	var got models.PriceSeries
	go func() {
		var err error
		got, err = store.Refresh(context.Background(), "AMD")
		secondDone <- err
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: got %v, want context.Canceled", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("waiter failed with the first caller's cancellation: %v", err)
	}
	if got.Len() != 10 {
		t.Errorf("waiter got %d bars, want 10", got.Len())
	}
	if n := src.callsFor("AMD"); n != 1 {
		t.Errorf("expected one shared fetch, got %d", n)
	}
}

func TestStoreFetchTimeout(t *testing.T) {
	src := newFakeSource()
	src.delay = time.Second
	store := NewStore(StoreConfig{Source: src, FetchTimeout: 20 * time.Millisecond})

	_, err := store.Refresh(context.Background(), "INTC")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}
