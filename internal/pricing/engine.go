package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable is returned when a formula needs a market quote and no
// usable one could be obtained.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// QuoteSource provides the current market quote.
type QuoteSource interface {
	Quote(ctx context.Context) (decimal.Decimal, error)
}

// Result is the financial outcome of pricing one order.
type Result struct {
	Formula         FormulaKind         `json:"formula"`
	Price           decimal.Decimal     `json:"price"`
	Cost            decimal.Decimal     `json:"cost"`
	Profit          decimal.Decimal     `json:"profit"`
	CommissionValue decimal.Decimal     `json:"commission_value"`
	QuoteUsed       decimal.NullDecimal `json:"quote_used"`
	UnitPriceUsed   decimal.Decimal     `json:"unit_price_used"`
	InvoiceFeeUSD   decimal.Decimal     `json:"invoice_fee_usd"`
	InvoiceCostUSD  decimal.Decimal     `json:"invoice_cost_usd"`
	InvoiceMismatch bool                `json:"invoice_mismatch,omitempty"`
	// CommissionUngated marks commission paid on a non-positive profit.
	CommissionUngated bool `json:"commission_ungated,omitempty"`
}

// Round returns a copy with every amount rounded to places.
func (r Result) Round(places int32) Result {
	r.Price = r.Price.Round(places)
	r.Cost = r.Cost.Round(places)
	r.Profit = r.Profit.Round(places)
	r.CommissionValue = r.CommissionValue.Round(places)
	r.UnitPriceUsed = r.UnitPriceUsed.Round(places)
	r.InvoiceFeeUSD = r.InvoiceFeeUSD.Round(places)
	r.InvoiceCostUSD = r.InvoiceCostUSD.Round(places)
	return r
}

// Engine computes order financials. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	cfg    Config
	quotes QuoteSource
}

func NewEngine(cfg Config, quotes QuoteSource) *Engine {
	return &Engine{cfg: cfg, quotes: quotes}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// WithQuotes returns an engine sharing the configuration but reading quotes
// from q.
func (e *Engine) WithQuotes(q QuoteSource) *Engine {
	return &Engine{cfg: e.cfg, quotes: q}
}

// Compute prices an order. Only the remessa and USDT formulas can fail, and
// only with ErrQuoteUnavailable.
func (e *Engine) Compute(ctx context.Context, in Input, seller *Seller, rule *Rule) (Result, error) {
	n := in.normalize()

	formula := FormulaGeneric
	if rule != nil {
		formula = rule.Formula
	} else if in.ProductType != "" {
		formula = ResolveFormula(in.ProductType)
	}

	switch formula {
	case FormulaRemessa:
		return e.computeRemessa(ctx, n, seller, rule)
	case FormulaUSDT:
		return e.computeUSDT(ctx, n, seller, rule)
	}
	if rule == nil {
		return e.computeWithoutService(n, seller), nil
	}
	return e.computeGeneric(ctx, n, seller, rule), nil
}

// acquireQuote prefers the historical quote and only then asks the source.
func (e *Engine) acquireQuote(ctx context.Context, historical decimal.Decimal) (decimal.Decimal, error) {
	if historical.IsPositive() {
		return historical, nil
	}
	if e.quotes == nil {
		return decimal.Zero, fmt.Errorf("%w: no quote source configured", ErrQuoteUnavailable)
	}
	q, err := e.quotes.Quote(ctx)
	if err != nil {
		if errors.Is(err, ErrQuoteUnavailable) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if !q.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive quote %s", ErrQuoteUnavailable, q)
	}
	return q, nil
}

func commission(profit decimal.Decimal, seller *Seller) decimal.Decimal {
	if seller == nil || !profit.IsPositive() {
		return decimal.Zero
	}
	return percentOf(profit, seller.CommissionRate)
}

func (e *Engine) computeGeneric(ctx context.Context, n normalized, seller *Seller, rule *Rule) Result {
	unit := n.unitPrice(rule)
	total := n.totalPrice(unit)

	quote := n.historical
	if !quote.IsPositive() && rule.Category == CategoryQuoteLinkedPercentage {
		live, err := e.acquireQuote(ctx, decimal.Zero)
		if err != nil {
			log.Printf("[pricing] WARN: live quote for %q unavailable, using unit price: %v", rule.Name, err)
		} else {
			quote = live
		}
	}
	if !quote.IsPositive() {
		quote = unit
	}

	cost := EvaluateCost(total, rule, QuoteContext{Quote: quote, Quantity: n.quantity})
	profit := total.Sub(cost)
	res := Result{
		Formula:         FormulaGeneric,
		Price:           total,
		Cost:            cost,
		Profit:          profit,
		CommissionValue: commission(profit, seller),
		UnitPriceUsed:   unit,
	}
	if quote.IsPositive() {
		res.QuoteUsed = decimal.NewNullDecimal(quote)
	}
	return res
}

func (e *Engine) computeWithoutService(n normalized, seller *Seller) Result {
	cost := decimal.Zero
	if n.hasExplicitCost {
		cost = n.explicitCost
	}
	profit := n.total.Sub(cost)
	res := Result{
		Formula:         FormulaGeneric,
		Price:           n.total,
		Cost:            cost,
		Profit:          profit,
		CommissionValue: commission(profit, seller),
		UnitPriceUsed:   n.unitPrice(nil),
	}
	if e.cfg.UngatedNoServiceCommission && seller != nil {
		res.CommissionValue = percentOf(profit, seller.CommissionRate)
		res.CommissionUngated = !profit.IsPositive() && !res.CommissionValue.IsZero()
	}
	if q := firstPositive(n.historical, res.UnitPriceUsed); q.IsPositive() {
		res.QuoteUsed = decimal.NewNullDecimal(q)
	}
	return res
}
