package domain

import "testing"

func TestCurrencyResolutionOrder(t *testing.T) {
	t.Parallel()

	o := &Order{
		Meta:     map[string]any{"currency": "EUR"},
		Entities: []Entity{{Currency: "GBP"}},
	}
	if got := o.Currency(); got != "EUR" {
		t.Fatalf("meta currency should win, got %s", got)
	}

	o.Meta = nil
	if got := o.Currency(); got != "GBP" {
		t.Fatalf("entity currency should be next, got %s", got)
	}

	o.Entities = nil
	if got := o.Currency(); got != "USD" {
		t.Fatalf("default should be USD, got %s", got)
	}
}

func TestTotalUsesPurchaseRateOverMeta(t *testing.T) {
	t.Parallel()

	o := &Order{
		Entities:     []Entity{{Price: 500}, {Price: 250}},
		PurchaseRate: &PurchaseRate{Amount: 1000},
		Meta:         map[string]any{"delivery_fee": float64(9999)},
	}
	if got := o.Total(); got != 1750 {
		t.Fatalf("total = %d, want 1750", got)
	}

	o.PurchaseRate = nil
	if got := o.Total(); got != 10749 {
		t.Fatalf("total with meta fee = %d, want 10749", got)
	}
}
