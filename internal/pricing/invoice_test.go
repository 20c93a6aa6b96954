package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestInvoiceFeeTierBoundaries(t *testing.T) {
	cases := map[string]string{
		"-5":       "0",
		"0":        "0",
		"0.01":     "80",
		"5000":     "80",
		"5000.01":  "40",
		"10000":    "40",
		"10000.01": "0",
	}
	for amount, want := range cases {
		got := InvoiceFeeUSD(d(amount))
		if !got.Equal(d(want)) {
			t.Fatalf("invoice fee for %s: expected %s, got %s", amount, want, got)
		}
	}
}

func TestInvoiceCostOnlyWhenFeeCharged(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.InvoiceCostUSD(d("40")); !got.Equal(d("25")) {
		t.Fatalf("expected 25 USD invoice cost, got %s", got)
	}
	if got := cfg.InvoiceCostUSD(decimal.Zero); !got.IsZero() {
		t.Fatalf("expected no invoice cost without fee, got %s", got)
	}
}

func TestInvoiceTiersAreConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InvoiceTiers = []InvoiceTier{{UpTo: d("100"), FeeUSD: d("5")}}

	if got := cfg.InvoiceFeeUSD(d("100")); !got.Equal(d("5")) {
		t.Fatalf("expected custom fee 5, got %s", got)
	}
	if got := cfg.InvoiceFeeUSD(d("100.5")); !got.IsZero() {
		t.Fatalf("expected no fee above last tier, got %s", got)
	}
}

func TestResolveFormula(t *testing.T) {
	cases := map[string]FormulaKind{
		"  Remessa ":      FormulaRemessa,
		"REMESSA":         FormulaRemessa,
		"Remessa Express": FormulaGeneric,
		"USDT-TRC20":      FormulaUSDT,
		"venda usdt":      FormulaUSDT,
		"":                FormulaGeneric,
		"Consignado":      FormulaGeneric,
	}
	for name, want := range cases {
		if got := ResolveFormula(name); got != want {
			t.Fatalf("formula for %q: expected %s, got %s", name, want, got)
		}
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory(" Cotacao_Percentual "); !ok || c != CategoryQuoteLinkedPercentage {
		t.Fatalf("expected quote-linked category, got %q %v", c, ok)
	}
	if _, ok := ParseCategory("hourly"); ok {
		t.Fatalf("expected unknown category to be rejected")
	}
}
