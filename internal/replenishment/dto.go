package replenishment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/replenish/internal/shared"
)

type reorderSuggestionResponse struct {
	ProductID              string  `json:"product_id"`
	ProductName            string  `json:"product_name"`
	CurrentQuantityOnHand  int     `json:"current_quantity_on_hand"`
	AverageDailySales      float64 `json:"average_daily_sales"`
	AverageLeadTimeDays    int     `json:"avg_lead_time_days"`
	SafetyStockPercentage  float64 `json:"safety_stock_percentage"`
	CalculatedReorderPoint int     `json:"calculated_reorder_point"`
	SuggestedOrderQuantity int     `json:"suggested_order_quantity"`
	Reason                 string  `json:"reason"`
}

func newReorderSuggestionResponse(s ReorderSuggestion) reorderSuggestionResponse {
	return reorderSuggestionResponse{
		ProductID:              s.ProductID,
		ProductName:            s.ProductName,
		CurrentQuantityOnHand:  s.CurrentQuantityOnHand,
		AverageDailySales:      s.AverageDailySales,
		AverageLeadTimeDays:    s.AverageLeadTimeDays,
		SafetyStockPercentage:  s.SafetyStockFraction,
		CalculatedReorderPoint: s.CalculatedReorderPoint,
		SuggestedOrderQuantity: s.SuggestedOrderQuantity,
		Reason:                 s.Reason,
	}
}

type createOrderRequest struct {
	ProductID        string `json:"product_id" validate:"required"`
	Quantity         int    `json:"quantity" validate:"required,gt=0"`
	OptimizationGoal string `json:"optimization_goal"`
}

type purchaseOrderResponse struct {
	POID                 string          `json:"po_id"`
	SupplierID           string          `json:"supplier_id"`
	ProductID            string          `json:"product_id"`
	QuantityOrdered      int             `json:"quantity_ordered"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	Total                decimal.Decimal `json:"total"`
	OrderDate            time.Time       `json:"order_date"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time      `json:"actual_delivery_date"`
	Status               POStatus        `json:"status"`
}

func newPurchaseOrderResponse(po PurchaseOrder) purchaseOrderResponse {
	resp := purchaseOrderResponse{
		POID:               po.ID,
		SupplierID:         po.SupplierID,
		ProductID:          po.ProductID,
		QuantityOrdered:    po.QuantityOrdered,
		UnitPrice:          po.UnitPrice,
		Total:              po.Total(),
		OrderDate:          po.OrderDate,
		ActualDeliveryDate: po.ActualDeliveryDate,
		Status:             po.Status,
	}
	if !po.ExpectedDeliveryDate.IsZero() {
		expected := po.ExpectedDeliveryDate
		resp.ExpectedDeliveryDate = &expected
	}
	return resp
}

type orderConfirmationResponse struct {
	purchaseOrderResponse
	SupplierName         string  `json:"supplier_name"`
	OptimizationGoal     Goal    `json:"optimization_goal"`
	Score                float64 `json:"score"`
	Message              string  `json:"message"`
	ChosenSupplierReason string  `json:"chosen_supplier_reason"`
}

type orderListResponse struct {
	Items      []purchaseOrderResponse `json:"items"`
	Pagination shared.Pagination       `json:"pagination"`
}

type poStatusResponse struct {
	POID                 string    `json:"po_id"`
	ProductID            string    `json:"product_id"`
	SupplierID           string    `json:"supplier_id"`
	QuantityOrdered      int       `json:"quantity_ordered"`
	OrderDate            time.Time `json:"order_date"`
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
	CurrentStatus        POStatus  `json:"current_status"`
	DaysOverdue          *int      `json:"days_overdue,omitempty"`
	Message              string    `json:"message"`
}

func newPOStatusResponse(r POStatusReport) poStatusResponse {
	resp := poStatusResponse{
		POID:                 r.POID,
		ProductID:            r.ProductID,
		SupplierID:           r.SupplierID,
		QuantityOrdered:      r.QuantityOrdered,
		OrderDate:            r.OrderDate,
		ExpectedDeliveryDate: r.ExpectedDeliveryDate,
		CurrentStatus:        r.Assessment.Status,
		Message:              r.Assessment.Message,
	}
	if days, ok := r.Assessment.DaysOverdue(); ok {
		resp.DaysOverdue = &days
	}
	return resp
}

type reminderRequest struct {
	POID       string `json:"po_id" validate:"required"`
	SupplierID string `json:"supplier_id" validate:"required"`
	Message    string `json:"message" validate:"max=2000"`
}

type reminderResponse struct {
	ReminderID      string    `json:"reminder_id"`
	POID            string    `json:"po_id"`
	SupplierID      string    `json:"supplier_id"`
	ReminderMessage string    `json:"reminder_message"`
	SentAt          time.Time `json:"sent_date"`
	Message         string    `json:"message,omitempty"`
}

func newReminderResponse(r SupplierReminder) reminderResponse {
	return reminderResponse{
		ReminderID:      r.ID,
		POID:            r.POID,
		SupplierID:      r.SupplierID,
		ReminderMessage: r.Message,
		SentAt:          r.SentAt,
	}
}

type deliverRequest struct {
	DeliveredAt *time.Time `json:"delivered_at"`
}

type stockAdjustRequest struct {
	Change int `json:"change" validate:"required,ne=0"`
}

type stockResponse struct {
	ProductID         string    `json:"product_id"`
	QuantityOnHand    int       `json:"quantity_on_hand"`
	WarehouseLocation string    `json:"warehouse_location"`
	UpdatedAt         time.Time `json:"last_updated_timestamp"`
}

type returnRequest struct {
	ProductID  string  `json:"product_id" validate:"required"`
	Quantity   int     `json:"quantity_returned" validate:"required,gt=0"`
	Reason     string  `json:"return_reason" validate:"required,max=500"`
	SupplierID *string `json:"supplier_id"`
}

type returnResponse struct {
	ReturnID   string    `json:"return_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity_returned"`
	Reason     string    `json:"return_reason"`
	ReturnedAt time.Time `json:"return_date"`
	SupplierID *string   `json:"supplier_id"`
}

func newReturnResponse(t ReturnTicket) returnResponse {
	return returnResponse{
		ReturnID:   t.ID,
		ProductID:  t.ProductID,
		Quantity:   t.QuantityReturned,
		Reason:     t.Reason,
		ReturnedAt: t.ReturnedAt,
		SupplierID: t.SupplierID,
	}
}
