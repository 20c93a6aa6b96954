package quote

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"zenith/backoffice/internal/pricing"
)

// Memo fetches the live quote at most once, so a batch of orders priced
// together sees the same value. Failures are remembered too.
type Memo struct {
	source pricing.QuoteSource
	once   sync.Once
	value  decimal.Decimal
	err    error
}

func NewMemo(source pricing.QuoteSource) *Memo {
	return &Memo{source: source}
}

func (m *Memo) Quote(ctx context.Context) (decimal.Decimal, error) {
	m.once.Do(func() {
		if m.source == nil {
			m.err = pricing.ErrQuoteUnavailable
			return
		}
		m.value, m.err = m.source.Quote(ctx)
	})
	return m.value, m.err
}
