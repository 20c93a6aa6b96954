package pricing

import "github.com/shopspring/decimal"

// InvoiceTier charges FeeUSD for remittances up to and including UpTo.
type InvoiceTier struct {
	UpTo   decimal.Decimal
	FeeUSD decimal.Decimal
}

// Config holds the business constants the formulas depend on.
type Config struct {
	// InvoiceTiers must be sorted by UpTo ascending. Amounts above the last
	// tier pay no invoice fee.
	InvoiceTiers []InvoiceTier
	// InvoiceIssueCostUSD is what an invoice costs the business whenever a fee is charged.
	InvoiceIssueCostUSD  decimal.Decimal
	RemessaSpreadPercent decimal.Decimal
	USDTSpreadPercent    decimal.Decimal
	// UngatedNoServiceCommission pays commission on non-positive profit for
	// orders without a service, as the first server release did.
	UngatedNoServiceCommission bool
}

func DefaultConfig() Config {
	return Config{
		InvoiceTiers: []InvoiceTier{
			{UpTo: decimal.NewFromInt(5000), FeeUSD: decimal.NewFromInt(80)},
			{UpTo: decimal.NewFromInt(10000), FeeUSD: decimal.NewFromInt(40)},
		},
		InvoiceIssueCostUSD:  decimal.NewFromInt(25),
		RemessaSpreadPercent: decimal.RequireFromString("1.2"),
		USDTSpreadPercent:    decimal.RequireFromString("0.3"),
	}
}
