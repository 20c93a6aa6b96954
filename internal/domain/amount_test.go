package domain

import (
	"encoding/json"
	"testing"
)

func TestAmountDecodesLeniently(t *testing.T) {
	var req OrderRequest
	payload := `{"quantity": 6000, "unit_price": "5,70", "price": "abc", "cost": null, "invoice_usd": true}`
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !req.Quantity.Valid || req.Quantity.Decimal.String() != "6000" {
		t.Fatalf("expected quantity 6000, got %+v", req.Quantity)
	}
	if !req.UnitPrice.Valid || req.UnitPrice.Decimal.String() != "5.7" {
		t.Fatalf("expected unit price 5.7, got %+v", req.UnitPrice)
	}
	if req.Price.Valid || !req.Price.Present {
		t.Fatalf("expected garbage price to be present but unset")
	}
	if req.Cost.Valid || !req.Cost.Present {
		t.Fatalf("expected null cost to be present but unset")
	}
	if req.InvoiceUSD.Valid {
		t.Fatalf("expected boolean invoice to be unset")
	}
	if req.HistoricalQuote.Present {
		t.Fatalf("expected absent historical quote to be reported as absent")
	}
}

func TestParseDecimalHandlesThousandsSeparator(t *testing.T) {
	got := ParseDecimal("1.234,56")
	if !got.Valid || got.Decimal.String() != "1234.56" {
		t.Fatalf("expected 1234.56, got %+v", got)
	}
	if ParseDecimal("  ").Valid {
		t.Fatalf("expected blank input to be unset")
	}
}
