package replenishment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func fixedClock(t *testing.T, raw string) func() time.Time {
	t.Helper()
	now, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	return func() time.Time { return now }
}

func testSuppliers() []Supplier {
	return []Supplier{
		{ID: "A", Name: "Supplier A", AverageLeadTimeDays: 7, OnTimeDeliveryRate: 0.95, Offers: map[string]SupplierOffer{"P001": {Price: price("480"), MOQ: 50}}},
		{ID: "B", Name: "Supplier B", AverageLeadTimeDays: 3, OnTimeDeliveryRate: 0.85, Offers: map[string]SupplierOffer{"P001": {Price: price("520"), MOQ: 30}}},
		{ID: "C", Name: "Supplier C", AverageLeadTimeDays: 10, OnTimeDeliveryRate: 0.90, Offers: map[string]SupplierOffer{"P001": {Price: price("450"), MOQ: 100}}},
	}
}
