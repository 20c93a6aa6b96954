package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/pricing"
)

func binanceServer(t *testing.T, price string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("symbol"); got != "USDTBRL" {
			t.Errorf("expected symbol USDTBRL, got %s", got)
		}
		fmt.Fprintf(w, `{"symbol":"USDTBRL","price":%q}`, price)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mercadoBitcoinServer(t *testing.T, last string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/tickers" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("symbols"); got != "USDT-BRL" {
			t.Errorf("expected symbols USDT-BRL, got %s", got)
		}
		fmt.Fprintf(w, `[{"pair":"USDT-BRL","last":%q,"high":"6.00"}]`, last)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBinanceFeedParsesTicker(t *testing.T) {
	feed := NewBinanceFeed(binanceServer(t, "5.50").URL, "USDTBRL")

	price, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("5.50")) {
		t.Fatalf("expected 5.50, got %s", price)
	}
}

func TestMercadoBitcoinFeedParsesTicker(t *testing.T) {
	feed := NewMercadoBitcoinFeed(mercadoBitcoinServer(t, "5.49").URL, "USDTBRL")

	price, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("5.49")) {
		t.Fatalf("expected 5.49, got %s", price)
	}
}

func TestChainUsesPrimaryFirst(t *testing.T) {
	chain := NewChain(time.Second,
		NewBinanceFeed(binanceServer(t, "5.50").URL, "USDTBRL"),
		NewMercadoBitcoinFeed(mercadoBitcoinServer(t, "5.49").URL, "USDTBRL"),
	)

	snap, err := chain.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Source != "binance" || !snap.Value.Equal(decimal.RequireFromString("5.50")) {
		t.Fatalf("expected binance 5.50, got %s %s", snap.Source, snap.Value)
	}
}

func TestChainFallsBackOnHTTPError(t *testing.T) {
	chain := NewChain(time.Second,
		NewBinanceFeed(failingServer(t, http.StatusBadGateway).URL, "USDTBRL"),
		NewMercadoBitcoinFeed(mercadoBitcoinServer(t, "5.49").URL, "USDTBRL"),
	)

	snap, err := chain.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Source != "mercadobitcoin" {
		t.Fatalf("expected fallback feed, got %s", snap.Source)
	}
}

func TestChainFallsBackOnNonPositivePrice(t *testing.T) {
	chain := NewChain(time.Second,
		NewBinanceFeed(binanceServer(t, "0").URL, "USDTBRL"),
		NewMercadoBitcoinFeed(mercadoBitcoinServer(t, "5.49").URL, "USDTBRL"),
	)

	price, err := chain.Quote(context.Background())
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("5.49")) {
		t.Fatalf("expected fallback price 5.49, got %s", price)
	}
}

func TestChainTimesOutSlowPrimary(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		fmt.Fprint(w, `{"symbol":"USDTBRL","price":"9.99"}`)
	}))
	t.Cleanup(slow.Close)

	chain := NewChain(50*time.Millisecond,
		NewBinanceFeed(slow.URL, "USDTBRL"),
		NewMercadoBitcoinFeed(mercadoBitcoinServer(t, "5.49").URL, "USDTBRL"),
	)

	start := time.Now()
	price, err := chain.Quote(context.Background())
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("5.49")) {
		t.Fatalf("expected fallback price, got %s", price)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected timeout to cut the primary call short, took %s", elapsed)
	}
}

func TestChainBothFeedsFailing(t *testing.T) {
	chain := NewChain(time.Second,
		NewBinanceFeed(failingServer(t, http.StatusInternalServerError).URL, "USDTBRL"),
		NewMercadoBitcoinFeed(failingServer(t, http.StatusServiceUnavailable).URL, "USDTBRL"),
	)

	_, err := chain.Quote(context.Background())
	if !errors.Is(err, pricing.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestBinanceCloseOn(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("interval") != "1d" || q.Get("startTime") != fmt.Sprintf("%d", day.UnixMilli()) {
			t.Errorf("unexpected kline query %s", r.URL.RawQuery)
		}
		fmt.Fprintf(w, `[[%d,"4.95","5.02","4.93","4.98","1000.0",%d,"4980.0",10,"500.0","2490.0","0"]]`,
			day.UnixMilli(), day.Add(24*time.Hour).UnixMilli()-1)
	}))
	t.Cleanup(srv.Close)

	price, err := NewBinanceFeed(srv.URL, "USDT-BRL").CloseOn(context.Background(), day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("4.98")) {
		t.Fatalf("expected close 4.98, got %s", price)
	}
}

func TestBinanceCloseOnMissingDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	if _, err := NewBinanceFeed(srv.URL, "USDTBRL").CloseOn(context.Background(), time.Now()); err == nil {
		t.Fatalf("expected error for empty kline response")
	}
}

type countingSnapshots struct {
	calls atomic.Int32
	err   error
}

func (c *countingSnapshots) Snapshot(context.Context) (domain.QuoteSnapshot, error) {
	c.calls.Add(1)
	if c.err != nil {
		return domain.QuoteSnapshot{}, c.err
	}
	return domain.QuoteSnapshot{Value: decimal.RequireFromString("5.5"), Source: "test", FetchedAt: time.Now()}, nil
}

func (c *countingSnapshots) Quote(ctx context.Context) (decimal.Decimal, error) {
	snap, err := c.Snapshot(ctx)
	return snap.Value, err
}

type mapQuoteCache struct {
	mu    sync.Mutex
	items map[string]domain.QuoteSnapshot
}

func (m *mapQuoteCache) Get(_ context.Context, key string) (*domain.QuoteSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (m *mapQuoteCache) Set(_ context.Context, key string, value *domain.QuoteSnapshot, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = *value
	return nil
}

func TestCachedServesSecondLookupFromCache(t *testing.T) {
	source := &countingSnapshots{}
	cached := NewCached(source, &mapQuoteCache{items: map[string]domain.QuoteSnapshot{}}, "USDTBRL", time.Minute)

	for i := 0; i < 3; i++ {
		price, err := cached.Quote(context.Background())
		if err != nil {
			t.Fatalf("quote failed: %v", err)
		}
		if !price.Equal(decimal.RequireFromString("5.5")) {
			t.Fatalf("expected 5.5, got %s", price)
		}
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", source.calls.Load())
	}
}

func TestCachedWithoutTTLAlwaysAsksSource(t *testing.T) {
	source := &countingSnapshots{}
	cached := NewCached(source, nil, "USDTBRL", 0)

	_, _ = cached.Quote(context.Background())
	_, _ = cached.Quote(context.Background())
	if source.calls.Load() != 2 {
		t.Fatalf("expected two upstream calls, got %d", source.calls.Load())
	}
}

func TestMemoFetchesOncePerBatch(t *testing.T) {
	source := &countingSnapshots{}
	memo := NewMemo(source)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := memo.Quote(context.Background()); err != nil {
				t.Errorf("memo quote failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if source.calls.Load() != 1 {
		t.Fatalf("expected a single fetch, got %d", source.calls.Load())
	}
}

func TestMemoRemembersFailure(t *testing.T) {
	source := &countingSnapshots{err: pricing.ErrQuoteUnavailable}
	memo := NewMemo(source)

	for i := 0; i < 3; i++ {
		if _, err := memo.Quote(context.Background()); !errors.Is(err, pricing.ErrQuoteUnavailable) {
			t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
		}
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected failure to be memoized, got %d calls", source.calls.Load())
	}
}
