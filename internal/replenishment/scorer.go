package replenishment

import "math"

// Selection is the winning supplier for a purchase.
type Selection struct {
	Supplier Supplier
	Offer    SupplierOffer
	Score    float64
}

// SkipFunc is notified about suppliers excluded by their MOQ.
type SkipFunc func(supplier Supplier, moq int)

// Score rates one supplier offer under goal. Higher is better.
func Score(goal Goal, offer SupplierOffer, leadTimeDays int, reliability float64) float64 {
	price := offer.Price.InexactFloat64()
	lead := float64(leadTimeDays)
	switch goal {
	case GoalCost:
		return 1000/price + reliability*10 + (100-lead)/10
	case GoalSpeed:
		return 1000/lead + reliability*10 + (1000/price)/100
	case GoalReliability:
		return reliability*1000 + (1000/price)/100 + (100-lead)/10
	default:
		return reliability*500 + 1000/price + 100/lead
	}
}

// SelectSupplier ranks suppliers offering productID that accept quantity.
// The first supplier reaching the highest score wins; later suppliers with an
// equal score do not replace it.
func SelectSupplier(productID string, quantity int, goal Goal, suppliers []Supplier, skipped SkipFunc) (Selection, error) {
	var (
		best     Selection
		found    bool
		offering bool
	)
	highest := math.Inf(-1)
	for _, s := range suppliers {
		offer, ok := s.Offer(productID)
		if !ok {
			continue
		}
		offering = true
		if quantity < offer.MOQ {
			if skipped != nil {
				skipped(s, offer.MOQ)
			}
			continue
		}
		score := Score(goal, offer, s.AverageLeadTimeDays, s.OnTimeDeliveryRate)
		if !found || score > highest {
			highest = score
			best = Selection{Supplier: s, Offer: offer, Score: score}
			found = true
		}
	}
	switch {
	case !offering:
		return Selection{}, ErrNoSupplierOffers
	case !found:
		return Selection{}, ErrNoSupplierMeetsMOQ
	}
	return best, nil
}
