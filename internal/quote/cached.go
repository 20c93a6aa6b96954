package quote

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"zenith/backoffice/internal/cache"
	"zenith/backoffice/internal/domain"
)

// SnapshotSource returns a quote together with where it came from.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (domain.QuoteSnapshot, error)
}

// Cached keeps the last live quote in a shared cache for ttl. Cache errors
// never fail a lookup.
type Cached struct {
	source SnapshotSource
	cache  cache.QuoteCache
	key    string
	ttl    time.Duration
}

func NewCached(source SnapshotSource, quoteCache cache.QuoteCache, symbol string, ttl time.Duration) *Cached {
	if quoteCache == nil {
		quoteCache = cache.NoopQuoteCache{}
	}
	return &Cached{
		source: source,
		cache:  quoteCache,
		key:    "quote:live:" + symbol,
		ttl:    ttl,
	}
}

func (c *Cached) Snapshot(ctx context.Context) (domain.QuoteSnapshot, error) {
	if c.ttl > 0 {
		snap, ok, err := c.cache.Get(ctx, c.key)
		if err != nil {
			log.Printf("[quote] WARN: cache get %s: %v", c.key, err)
		} else if ok {
			return *snap, nil
		}
	}

	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		return domain.QuoteSnapshot{}, err
	}
	if c.ttl > 0 {
		if err := c.cache.Set(ctx, c.key, &snap, c.ttl); err != nil {
			log.Printf("[quote] WARN: cache set %s: %v", c.key, err)
		}
	}
	return snap, nil
}

func (c *Cached) Quote(ctx context.Context) (decimal.Decimal, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Value, nil
}
