package pricing

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// computeRemessa prices a foreign remittance. Quantity is the remitted USD
// amount; the closing quote is mandatory.
func (e *Engine) computeRemessa(ctx context.Context, n normalized, seller *Seller, rule *Rule) (Result, error) {
	qty := n.quantity
	fee := e.cfg.InvoiceFeeUSD(qty)
	invoiceCost := e.cfg.InvoiceCostUSD(fee)

	closing, err := e.acquireQuote(ctx, n.historical)
	if err != nil {
		return Result{}, err
	}

	negotiated := n.unitPrice(rule)
	spread := rule.spreadOr(e.cfg.RemessaSpreadPercent)
	costRate := closing.Mul(one.Add(spread.Div(hundred)))

	cost := qty.Add(invoiceCost).Mul(costRate)
	saleBase := qty
	if fee.IsPositive() {
		saleBase = qty.Add(fee)
	}
	price := saleBase.Mul(negotiated)
	profit := price.Sub(cost)

	unitUsed := negotiated
	if unitUsed.IsZero() {
		unitUsed = closing
	}

	res := Result{
		Formula:         FormulaRemessa,
		Price:           price,
		Cost:            cost,
		Profit:          profit,
		CommissionValue: commission(profit, seller),
		QuoteUsed:       decimal.NewNullDecimal(closing),
		UnitPriceUsed:   unitUsed,
		InvoiceFeeUSD:   fee,
		InvoiceCostUSD:  invoiceCost,
	}
	if n.invoiceDeclared.IsPositive() && !n.invoiceDeclared.Equal(fee) {
		res.InvoiceMismatch = true
		log.Printf("[pricing] WARN: declared invoice %s USD differs from tier fee %s USD for remittance %s", n.invoiceDeclared, fee, qty)
	}
	return res, nil
}
