package pricing

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// computeUSDT prices a USDT sale. A failed live quote falls back to the
// order's stored quote and then to its own unit price.
func (e *Engine) computeUSDT(ctx context.Context, n normalized, seller *Seller, rule *Rule) (Result, error) {
	unit := n.unitPrice(rule)

	closing, err := e.acquireQuote(ctx, n.historical)
	if err != nil {
		fallback := firstPositive(n.persistedQuote, unit, n.derivedUnit())
		if !fallback.IsPositive() {
			return Result{}, err
		}
		log.Printf("[pricing] WARN: usdt quote unavailable, falling back to %s: %v", fallback, err)
		closing = fallback
	}

	spread := rule.spreadOr(e.cfg.USDTSpreadPercent)
	costRate := closing.Mul(one.Add(spread.Div(hundred)))

	price := n.total
	if unit.IsPositive() && n.quantity.IsPositive() {
		price = unit.Mul(n.quantity)
	}
	cost := decimal.Zero
	if n.quantity.IsPositive() {
		cost = costRate.Mul(n.quantity)
	}
	profit := price.Sub(cost)

	return Result{
		Formula:         FormulaUSDT,
		Price:           price,
		Cost:            cost,
		Profit:          profit,
		CommissionValue: commission(profit, seller),
		QuoteUsed:       decimal.NewNullDecimal(closing),
		UnitPriceUsed:   unit,
	}, nil
}
