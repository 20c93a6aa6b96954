package pricing

import "github.com/shopspring/decimal"

// Input is the order data the engine prices. Every numeric field is optional;
// absent or out-of-range values are treated as unset rather than rejected.
type Input struct {
	Quantity           decimal.NullDecimal
	DeclaredTotalPrice decimal.NullDecimal
	DeclaredUnitPrice  decimal.NullDecimal
	InvoiceDeclaredUSD decimal.NullDecimal
	HistoricalQuote    decimal.NullDecimal
	// ExplicitCost is only consulted for orders without a service.
	ExplicitCost decimal.NullDecimal
	// PersistedQuote is the quote stored on the order by an earlier computation.
	PersistedQuote decimal.NullDecimal
	ProductType    string
}

// Seller is the commission side of an order.
type Seller struct {
	CommissionRate decimal.Decimal
}

type normalized struct {
	quantity        decimal.Decimal
	total           decimal.Decimal
	unit            decimal.Decimal
	invoiceDeclared decimal.Decimal
	historical      decimal.Decimal
	persistedQuote  decimal.Decimal
	explicitCost    decimal.Decimal
	hasExplicitCost bool
}

func positiveOrZero(v decimal.NullDecimal) decimal.Decimal {
	if v.Valid && v.Decimal.IsPositive() {
		return v.Decimal
	}
	return decimal.Zero
}

func (in Input) normalize() normalized {
	n := normalized{
		quantity:        positiveOrZero(in.Quantity),
		total:           positiveOrZero(in.DeclaredTotalPrice),
		unit:            positiveOrZero(in.DeclaredUnitPrice),
		invoiceDeclared: positiveOrZero(in.InvoiceDeclaredUSD),
		historical:      positiveOrZero(in.HistoricalQuote),
		persistedQuote:  positiveOrZero(in.PersistedQuote),
	}
	if in.ExplicitCost.Valid {
		n.explicitCost = in.ExplicitCost.Decimal
		n.hasExplicitCost = true
	}
	return n
}

// derivedUnit is declared total over quantity, or zero.
func (n normalized) derivedUnit() decimal.Decimal {
	if n.total.IsPositive() && n.quantity.IsPositive() {
		return n.total.Div(n.quantity)
	}
	return decimal.Zero
}

// unitPrice resolves declared unit price, then the rule's reference price,
// then the derived unit price.
func (n normalized) unitPrice(rule *Rule) decimal.Decimal {
	if n.unit.IsPositive() {
		return n.unit
	}
	if ref := rule.referencePrice(); ref.IsPositive() {
		return ref
	}
	return n.derivedUnit()
}

func (n normalized) totalPrice(unit decimal.Decimal) decimal.Decimal {
	if n.total.IsPositive() {
		return n.total
	}
	return unit.Mul(n.quantity)
}

func firstPositive(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v.IsPositive() {
			return v
		}
	}
	return decimal.Zero
}
