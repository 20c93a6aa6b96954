package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is the cost rule of a generic service. Values are the names stored
// in the services table.
type Category string

const (
	CategoryFixed                 Category = "fixo"
	CategoryPercentage            Category = "percentual"
	CategoryFixedPlusPercentage   Category = "fixo_percentual"
	CategoryQuoteLinkedPercentage Category = "cotacao_percentual"
)

func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryFixed, CategoryPercentage, CategoryFixedPlusPercentage, CategoryQuoteLinkedPercentage:
		return c, true
	}
	return "", false
}

// FormulaKind selects which computation prices an order.
type FormulaKind string

const (
	FormulaGeneric FormulaKind = "generic"
	FormulaRemessa FormulaKind = "remessa"
	FormulaUSDT    FormulaKind = "usdt"
)

// ResolveFormula maps a service or product name to its formula. Only an exact
// "remessa" selects the remittance formula; any name mentioning usdt selects
// the USDT one.
func ResolveFormula(name string) FormulaKind {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "remessa":
		return FormulaRemessa
	case strings.Contains(key, "usdt"):
		return FormulaUSDT
	default:
		return FormulaGeneric
	}
}

// Rule is a service's pricing configuration, resolved once when the service
// is loaded.
type Rule struct {
	Name           string
	Formula        FormulaKind
	Category       Category
	FixedAmount    decimal.Decimal
	PercentRate    decimal.Decimal
	ReferencePrice decimal.Decimal

	// Spread is the explicit remittance or USDT spread. A valid zero means no
	// spread; an invalid value falls back to PercentRate and then the default.
	Spread decimal.NullDecimal
}

func NewRule(name string, category Category, fixedAmount, percentRate, referencePrice decimal.Decimal) *Rule {
	return &Rule{
		Name:           name,
		Formula:        ResolveFormula(name),
		Category:       category,
		FixedAmount:    fixedAmount,
		PercentRate:    percentRate,
		ReferencePrice: referencePrice,
	}
}

// WithSpread sets the explicit spread. Negative values are ignored.
func (r *Rule) WithSpread(spread decimal.NullDecimal) *Rule {
	if spread.Valid && !spread.Decimal.IsNegative() {
		r.Spread = spread
	}
	return r
}

// spreadOr returns the explicit spread, then a positive percent rate, then def.
func (r *Rule) spreadOr(def decimal.Decimal) decimal.Decimal {
	switch {
	case r == nil:
		return def
	case r.Spread.Valid && !r.Spread.Decimal.IsNegative():
		return r.Spread.Decimal
	case r.PercentRate.IsPositive():
		return r.PercentRate
	default:
		return def
	}
}

func (r *Rule) referencePrice() decimal.Decimal {
	if r == nil || !r.ReferencePrice.IsPositive() {
		return decimal.Zero
	}
	return r.ReferencePrice
}

// QuoteContext carries what a quote-linked rule needs beyond the total price.
type QuoteContext struct {
	Quote    decimal.Decimal
	Quantity decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// EvaluateCost applies a generic cost rule. A nil rule or an unknown category
// costs nothing.
func EvaluateCost(totalPrice decimal.Decimal, rule *Rule, qc QuoteContext) decimal.Decimal {
	if rule == nil {
		return decimal.Zero
	}
	switch rule.Category {
	case CategoryFixed:
		return rule.FixedAmount
	case CategoryPercentage:
		return percentOf(totalPrice, rule.PercentRate)
	case CategoryFixedPlusPercentage:
		return rule.FixedAmount.Add(percentOf(totalPrice, rule.PercentRate))
	case CategoryQuoteLinkedPercentage:
		unitCost := qc.Quote.Add(percentOf(qc.Quote, rule.PercentRate))
		if qc.Quantity.IsPositive() {
			return unitCost.Mul(qc.Quantity)
		}
		return unitCost
	default:
		return decimal.Zero
	}
}
