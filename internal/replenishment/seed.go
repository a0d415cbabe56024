package replenishment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Catalog is a full snapshot of the entity store used for seeding.
type Catalog struct {
	Products       []Product
	Stock          []StockRecord
	Suppliers      []Supplier
	PurchaseOrders []PurchaseOrder
	Returns        []ReturnTicket
}

// Counters returns the sequence offsets matching the seeded records.
func (c Catalog) Counters() map[string]int64 {
	return map[string]int64{
		PrefixPurchaseOrder: int64(len(c.PurchaseOrders)),
		PrefixReturn:        int64(len(c.Returns)),
	}
}

func mustTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return t
}

func offer(price int64, moq int) SupplierOffer {
	return SupplierOffer{Price: decimal.NewFromInt(price), MOQ: moq}
}

// DemoCatalog returns the demo dataset served in development and test mode.
func DemoCatalog() Catalog {
	seeded := mustTime("2025-06-01T00:00:00Z")
	s001 := "S001"
	return Catalog{
		Products: []Product{
			{ID: "P001", Name: "Eco-Friendly Water Bottle", SKU: "EFWB001", Description: "Sustainable and insulated water bottle.", UnitCost: decimal.NewFromInt(500), RetailPrice: decimal.NewFromInt(999), SafetyStockFraction: 0.15, AverageDailySales: 10},
			{ID: "P002", Name: "Smart Home Hub 2.0", SKU: "SHH2001", Description: "Central control for smart devices.", UnitCost: decimal.NewFromInt(2500), RetailPrice: decimal.NewFromInt(4999), SafetyStockFraction: 0.20, AverageDailySales: 3},
			{ID: "P003", Name: "Organic Coffee Beans (500g)", SKU: "OCB5001", Description: "Ethically sourced arabica beans.", UnitCost: decimal.NewFromInt(300), RetailPrice: decimal.NewFromInt(599), SafetyStockFraction: 0.10, AverageDailySales: 25},
			{ID: "P004", Name: "Ergonomic Office Chair", SKU: "EOC001", Description: "Adjustable chair for long working hours.", UnitCost: decimal.NewFromInt(8000), RetailPrice: decimal.NewFromInt(14999), SafetyStockFraction: 0.25, AverageDailySales: 1},
		},
		Stock: []StockRecord{
			{ProductID: "P001", QuantityOnHand: 80, WarehouseLocation: "A1", UpdatedAt: seeded},
			{ProductID: "P002", QuantityOnHand: 10, WarehouseLocation: "B2", UpdatedAt: seeded},
			{ProductID: "P003", QuantityOnHand: 150, WarehouseLocation: "C3", UpdatedAt: seeded},
			{ProductID: "P004", QuantityOnHand: 2, WarehouseLocation: "D4", UpdatedAt: seeded},
		},
		Suppliers: []Supplier{
			{
				ID: "S001", Name: "Global Supply Co.", ContactPerson: "Alice Smith", Email: "alice@globalsupply.com", Phone: "9876543210",
				AverageLeadTimeDays: 7, OnTimeDeliveryRate: 0.95,
				Offers: map[string]SupplierOffer{"P001": offer(480, 50), "P002": offer(2400, 5), "P003": offer(290, 100)},
			},
			{
				ID: "S002", Name: "Rapid Parts Inc.", ContactPerson: "Bob Johnson", Email: "bob@rapidparts.com", Phone: "9123456789",
				AverageLeadTimeDays: 3, OnTimeDeliveryRate: 0.85,
				Offers: map[string]SupplierOffer{"P001": offer(520, 30), "P002": offer(2600, 3), "P004": offer(7900, 1)},
			},
			{
				ID: "S003", Name: "Budget Wholesale", ContactPerson: "Charlie Brown", Email: "charlie@budgetwholesale.com", Phone: "9988776655",
				AverageLeadTimeDays: 10, OnTimeDeliveryRate: 0.90,
				Offers: map[string]SupplierOffer{"P001": offer(450, 100), "P003": offer(280, 200), "P004": offer(7500, 1)},
			},
		},
		PurchaseOrders: []PurchaseOrder{
			{
				ID: "PO-20250601-001", SupplierID: "S001", ProductID: "P003", QuantityOrdered: 200, UnitPrice: decimal.NewFromInt(290),
				OrderDate: mustTime("2025-06-01T09:00:00Z"), ExpectedDeliveryDate: mustTime("2025-06-08T09:00:00Z"), Status: POStatusDelayed,
			},
			{
				ID: "PO-20250701-002", SupplierID: "S002", ProductID: "P001", QuantityOrdered: 50, UnitPrice: decimal.NewFromInt(520),
				OrderDate: mustTime("2025-07-01T10:00:00Z"), ExpectedDeliveryDate: mustTime("2025-07-04T10:00:00Z"), Status: POStatusPending,
			},
		},
		Returns: []ReturnTicket{
			{ID: "RT-20250615-001", ProductID: "P001", QuantityReturned: 5, Reason: "damaged_in_transit", ReturnedAt: mustTime("2025-06-15T14:30:00Z"), SupplierID: &s001},
		},
	}
}
