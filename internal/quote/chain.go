package quote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/pricing"
)

const DefaultTimeout = 10 * time.Second

// Chain asks each feed in order and returns the first positive price. Every
// feed call gets its own timeout; there are no retries.
type Chain struct {
	feeds   []Feed
	timeout time.Duration
	now     func() time.Time
}

func NewChain(timeout time.Duration, feeds ...Feed) *Chain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Chain{feeds: feeds, timeout: timeout, now: time.Now}
}

func (c *Chain) Quote(ctx context.Context) (decimal.Decimal, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Value, nil
}

func (c *Chain) Snapshot(ctx context.Context) (domain.QuoteSnapshot, error) {
	var errs []error
	for _, feed := range c.feeds {
		price, err := c.fetch(ctx, feed)
		if err != nil {
			log.Printf("[quote] WARN: %s failed: %v", feed.Name(), err)
			errs = append(errs, err)
			continue
		}
		log.Printf("[quote] %s answered %s", feed.Name(), price)
		return domain.QuoteSnapshot{Value: price, Source: feed.Name(), FetchedAt: c.now().UTC()}, nil
	}
	if len(errs) == 0 {
		return domain.QuoteSnapshot{}, fmt.Errorf("%w: no feeds configured", pricing.ErrQuoteUnavailable)
	}
	return domain.QuoteSnapshot{}, fmt.Errorf("%w: %w", pricing.ErrQuoteUnavailable, errors.Join(errs...))
}

func (c *Chain) fetch(ctx context.Context, feed Feed) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	price, err := feed.Fetch(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: non-positive price %s", feed.Name(), price)
	}
	return price, nil
}
