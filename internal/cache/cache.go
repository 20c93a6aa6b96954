package cache

import (
	"context"
	"time"

	"zenith/backoffice/internal/domain"
)

// QuoteCache shares the last live quote between requests and processes.
type QuoteCache interface {
	Get(ctx context.Context, key string) (*domain.QuoteSnapshot, bool, error)
	Set(ctx context.Context, key string, value *domain.QuoteSnapshot, ttl time.Duration) error
}

type NoopQuoteCache struct{}

func (NoopQuoteCache) Get(_ context.Context, _ string) (*domain.QuoteSnapshot, bool, error) {
	return nil, false, nil
}

func (NoopQuoteCache) Set(_ context.Context, _ string, _ *domain.QuoteSnapshot, _ time.Duration) error {
	return nil
}
