package replenishment

import (
	"fmt"
	"math"
)

// DefaultLeadTimeDays is used when no supplier offers the product.
const DefaultLeadTimeDays = 7

// SuggestReorder decides whether product needs replenishment. stock may be nil,
// in which case the product is skipped. suppliers should be the suppliers
// offering the product; others are ignored.
func SuggestReorder(product Product, stock *StockRecord, suppliers []Supplier) (ReorderSuggestion, bool) {
	if stock == nil {
		return ReorderSuggestion{}, false
	}
	eligible := offering(product.ID, suppliers)

	leadTime := AverageLeadTime(eligible)
	point := ReorderPoint(product.AverageDailySales, max(1, leadTime), product.SafetyStockFraction)
	onHand := stock.QuantityOnHand
	if onHand >= point {
		return ReorderSuggestion{}, false
	}

	qty := point - onHand
	if qty <= 0 {
		qty = 1
	}
	qty = max(qty, minimumMOQ(product.ID, eligible))

	return ReorderSuggestion{
		ProductID:              product.ID,
		ProductName:            product.Name,
		CurrentQuantityOnHand:  onHand,
		AverageDailySales:      product.AverageDailySales,
		AverageLeadTimeDays:    leadTime,
		SafetyStockFraction:    product.SafetyStockFraction,
		CalculatedReorderPoint: point,
		SuggestedOrderQuantity: qty,
		Reason:                 fmt.Sprintf("Current stock (%d) is below calculated reorder point (%d).", onHand, point),
	}, true
}

// AverageLeadTime is the ceiling of the mean supplier lead time, or
// DefaultLeadTimeDays when suppliers is empty.
func AverageLeadTime(suppliers []Supplier) int {
	if len(suppliers) == 0 {
		return DefaultLeadTimeDays
	}
	var sum float64
	for _, s := range suppliers {
		sum += float64(s.AverageLeadTimeDays)
	}
	return int(math.Ceil(sum / float64(len(suppliers))))
}

// ReorderPoint covers demand over the lead time plus a safety buffer sized as a
// fraction of one day's demand.
func ReorderPoint(averageDailySales float64, leadTimeDays int, safetyFraction float64) int {
	return int(math.Ceil(averageDailySales*float64(leadTimeDays) + averageDailySales*safetyFraction))
}

func minimumMOQ(productID string, suppliers []Supplier) int {
	moq := 0
	for _, s := range suppliers {
		offer, ok := s.Offer(productID)
		if !ok {
			continue
		}
		if moq == 0 || offer.MOQ < moq {
			moq = offer.MOQ
		}
	}
	if moq < 1 {
		return 1
	}
	return moq
}

func offering(productID string, suppliers []Supplier) []Supplier {
	out := make([]Supplier, 0, len(suppliers))
	for _, s := range suppliers {
		if _, ok := s.Offer(productID); ok {
			out = append(out, s)
		}
	}
	return out
}
