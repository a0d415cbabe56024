package replenishment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// POStatus is the recorded lifecycle state of a purchase order.
type POStatus string

const (
	POStatusPending   POStatus = "pending"
	POStatusShipped   POStatus = "shipped"
	POStatusDelivered POStatus = "delivered"
	POStatusDelayed   POStatus = "delayed"
)

// Valid reports whether s is a known status.
func (s POStatus) Valid() bool {
	switch s {
	case POStatusPending, POStatusShipped, POStatusDelivered, POStatusDelayed:
		return true
	}
	return false
}

// Goal selects the weighting used to rank suppliers.
type Goal string

const (
	GoalCost        Goal = "cost"
	GoalSpeed       Goal = "speed"
	GoalReliability Goal = "reliability"
	GoalBalance     Goal = "balance"
)

// ParseGoal maps free-form input to a Goal. Empty and unknown values fall back to balance.
func ParseGoal(raw string) Goal {
	switch Goal(raw) {
	case GoalCost, GoalSpeed, GoalReliability:
		return Goal(raw)
	}
	return GoalBalance
}

// Product is immutable reference data for the engine.
type Product struct {
	ID                  string
	Name                string
	SKU                 string
	Description         string
	UnitCost            decimal.Decimal
	RetailPrice         decimal.Decimal
	SafetyStockFraction float64
	AverageDailySales   float64
}

// StockRecord holds on-hand quantity for one product.
type StockRecord struct {
	ProductID         string
	QuantityOnHand    int
	WarehouseLocation string
	UpdatedAt         time.Time
}

// SupplierOffer is the price and MOQ a supplier quotes for one product.
type SupplierOffer struct {
	Price decimal.Decimal
	MOQ   int
}

// Supplier with its per-product offers.
type Supplier struct {
	ID                  string
	Name                string
	ContactPerson       string
	Email               string
	Phone               string
	AverageLeadTimeDays int
	OnTimeDeliveryRate  float64
	Offers              map[string]SupplierOffer
}

// Offer returns the supplier's offer for productID.
func (s Supplier) Offer(productID string) (SupplierOffer, bool) {
	offer, ok := s.Offers[productID]
	return offer, ok
}

// PurchaseOrder as recorded in the store. A zero ExpectedDeliveryDate marks an
// unusable record.
type PurchaseOrder struct {
	ID                   string
	SupplierID           string
	ProductID            string
	QuantityOrdered      int
	UnitPrice            decimal.Decimal
	OrderDate            time.Time
	ExpectedDeliveryDate time.Time
	ActualDeliveryDate   *time.Time
	Status               POStatus
}

// Total returns quantity times unit price.
func (po PurchaseOrder) Total() decimal.Decimal {
	return po.UnitPrice.Mul(decimal.NewFromInt(int64(po.QuantityOrdered)))
}

// SupplierReminder is an append-only follow-up log entry.
type SupplierReminder struct {
	ID         string
	POID       string
	SupplierID string
	Message    string
	SentAt     time.Time
}

// ReturnTicket records goods sent back.
type ReturnTicket struct {
	ID               string
	ProductID        string
	QuantityReturned int
	Reason           string
	ReturnedAt       time.Time
	SupplierID       *string
}

// ReorderSuggestion is emitted for products below their reorder point.
type ReorderSuggestion struct {
	ProductID              string
	ProductName            string
	CurrentQuantityOnHand  int
	AverageDailySales      float64
	AverageLeadTimeDays    int
	SafetyStockFraction    float64
	CalculatedReorderPoint int
	SuggestedOrderQuantity int
	Reason                 string
}

var (
	// ErrInvalidArgument indicates missing or out of range input.
	ErrInvalidArgument = errors.New("replenishment: invalid argument")
	// ErrNotFound indicates a missing record or no usable supplier.
	ErrNotFound = errors.New("replenishment: not found")
	// ErrNoSupplierOffers means no supplier lists the product at all.
	ErrNoSupplierOffers = fmt.Errorf("%w: no supplier offers this product", ErrNotFound)
	// ErrNoSupplierMeetsMOQ means every offering supplier requires a larger order.
	ErrNoSupplierMeetsMOQ = fmt.Errorf("%w: no supplier meets MOQ for this quantity", ErrNotFound)
	// ErrDataQuality flags records that cannot be evaluated.
	ErrDataQuality = errors.New("replenishment: data quality")
	// ErrInvalidState occurs when an action violates the PO workflow.
	ErrInvalidState = errors.New("replenishment: invalid state transition")
	// ErrDuplicateID means a generated id is already taken in the store.
	ErrDuplicateID = errors.New("replenishment: duplicate id")
)
