package pricing

import "github.com/shopspring/decimal"

// InvoiceFeeUSD returns the invoice surcharge for a remittance using the
// default tiers.
func InvoiceFeeUSD(remittanceUSD decimal.Decimal) decimal.Decimal {
	return DefaultConfig().InvoiceFeeUSD(remittanceUSD)
}

func (c Config) InvoiceFeeUSD(remittanceUSD decimal.Decimal) decimal.Decimal {
	if !remittanceUSD.IsPositive() {
		return decimal.Zero
	}
	for _, tier := range c.InvoiceTiers {
		if remittanceUSD.LessThanOrEqual(tier.UpTo) {
			return tier.FeeUSD
		}
	}
	return decimal.Zero
}

// InvoiceCostUSD is the internal cost of issuing an invoice carrying fee.
func (c Config) InvoiceCostUSD(fee decimal.Decimal) decimal.Decimal {
	if fee.IsPositive() {
		return c.InvoiceIssueCostUSD
	}
	return decimal.Zero
}
