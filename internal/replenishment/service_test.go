package replenishment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/replenish/internal/shared"
)

type recordingPublisher struct {
	orders    []OrderPlacedEvent
	reminders []ReminderIssuedEvent
	err       error
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, evt OrderPlacedEvent) error {
	p.orders = append(p.orders, evt)
	return p.err
}

func (p *recordingPublisher) PublishReminderIssued(_ context.Context, evt ReminderIssuedEvent) error {
	p.reminders = append(p.reminders, evt)
	return p.err
}

type countingMetrics struct {
	orders      map[Goal]int
	reminders   int
	delayed     int
	suggestions int
}

func (m *countingMetrics) OrderPlaced(goal Goal) {
	if m.orders == nil {
		m.orders = make(map[Goal]int)
	}
	m.orders[goal]++
}
func (m *countingMetrics) ReminderSent()               { m.reminders++ }
func (m *countingMetrics) DelayedPurchaseOrders(n int) { m.delayed = n }
func (m *countingMetrics) ReorderSuggestions(n int)    { m.suggestions = n }

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type serviceFixture struct {
	svc       *Service
	repo      *MemoryRepository
	publisher *recordingPublisher
	metrics   *countingMetrics
	audit     *memoryAudit
}

const fixtureNow = "2025-07-20T12:00:00Z"

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	catalog := DemoCatalog()
	clock := fixedClock(t, fixtureNow)
	f := serviceFixture{
		repo:      NewMemoryRepository(catalog),
		publisher: &recordingPublisher{},
		metrics:   &countingMetrics{},
		audit:     &memoryAudit{},
	}
	f.svc = NewService(f.repo, ServiceConfig{
		IDs:     NewSequenceGenerator(NewMemoryCounter(catalog.Counters()), clock),
		Events:  f.publisher,
		Metrics: f.metrics,
		Audit:   f.audit,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:   clock,
	})
	return f
}

func TestPlaceOrderChoosesBestSupplier(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	conf, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{ProductID: "P001", Quantity: 50})
	require.NoError(t, err)
	require.Equal(t, "PO-20250720-003", conf.ID)
	require.Equal(t, "S001", conf.SupplierID)
	require.Equal(t, GoalBalance, conf.Goal)
	require.Equal(t, POStatusPending, conf.Status)
	require.True(t, conf.UnitPrice.Equal(price("480")))
	require.Equal(t, fixedClock(t, fixtureNow)().AddDate(0, 0, 7), conf.ExpectedDeliveryDate)
	require.Equal(t, "Order placed for 50 units of Eco-Friendly Water Bottle from Global Supply Co.. Chosen for: balance optimization.", conf.Message)
	require.Contains(t, conf.ChosenSupplierReason, "based on balance. Price: 480, Lead Time: 7 days, Reliability: 95%.")

	stock, err := f.repo.GetStock(ctx, "P001")
	require.NoError(t, err)
	require.Equal(t, 80, stock.QuantityOnHand)

	stored, err := f.repo.GetPurchaseOrder(ctx, conf.ID)
	require.NoError(t, err)
	require.Equal(t, conf.PurchaseOrder, stored)

	require.Len(t, f.publisher.orders, 1)
	require.Equal(t, 1, f.metrics.orders[GoalBalance])
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, "PO_CREATE", f.audit.logs[0].Action)
}

func TestPlaceOrderUnknownGoalFallsBackToBalance(t *testing.T) {
	f := newServiceFixture(t)
	conf, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{ProductID: "P004", Quantity: 1, Goal: "fastest"})
	require.NoError(t, err)
	require.Equal(t, GoalBalance, conf.Goal)
}

func TestPlaceOrderErrors(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{ProductID: "P001", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{Quantity: 5})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{ProductID: "P404", Quantity: 5})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{ProductID: "P002", Quantity: 2})
	require.ErrorIs(t, err, ErrNoSupplierMeetsMOQ)

	orders, err := f.repo.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Empty(t, f.publisher.orders)
}

func TestPlaceOrderPublishFailureDoesNotFailOrder(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.err = errors.New("broker down")
	conf, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{ProductID: "P001", Quantity: 100, Goal: GoalCost})
	require.NoError(t, err)
	require.NotEmpty(t, conf.ID)
}

func TestGetReorderSuggestionsDemoCatalog(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	suggestions, err := f.svc.GetReorderSuggestions(ctx)
	require.NoError(t, err)
	require.Len(t, suggestions, 3)

	byID := make(map[string]ReorderSuggestion)
	for _, s := range suggestions {
		byID[s.ProductID] = s
	}
	require.NotContains(t, byID, "P001")
	require.Equal(t, 16, byID["P002"].CalculatedReorderPoint)
	require.Equal(t, 6, byID["P002"].SuggestedOrderQuantity)
	require.Equal(t, 228, byID["P003"].CalculatedReorderPoint)
	require.Equal(t, 100, byID["P003"].SuggestedOrderQuantity)
	require.Equal(t, 8, byID["P004"].CalculatedReorderPoint)
	require.Equal(t, 6, byID["P004"].SuggestedOrderQuantity)
	require.Equal(t, 3, f.metrics.suggestions)

	again, err := f.svc.GetReorderSuggestions(ctx)
	require.NoError(t, err)
	require.Equal(t, suggestions, again)
}

func TestGetReorderSuggestionsAfterStockDrop(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.AdjustStock(ctx, "P001", -30)
	require.NoError(t, err)

	suggestions, err := f.svc.GetReorderSuggestions(ctx)
	require.NoError(t, err)
	require.Equal(t, "P001", suggestions[0].ProductID)
	require.Equal(t, 72, suggestions[0].CalculatedReorderPoint)
	require.Equal(t, 30, suggestions[0].SuggestedOrderQuantity)
}

func TestGetPOStatusReport(t *testing.T) {
	f := newServiceFixture(t)
	reports, err := f.svc.GetPOStatusReport(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	days, ok := reports[0].Assessment.DaysOverdue()
	require.True(t, ok)
	require.Equal(t, 42, days)
	days, ok = reports[1].Assessment.DaysOverdue()
	require.True(t, ok)
	require.Equal(t, 16, days)
	require.Equal(t, POStatusDelayed, reports[1].Assessment.Status)
	require.Equal(t, 2, f.metrics.delayed)

	stored, err := f.repo.GetPurchaseOrder(context.Background(), "PO-20250701-002")
	require.NoError(t, err)
	require.Equal(t, POStatusPending, stored.Status)
}

func TestGetPOStatusReportSkipsBadDates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	err := f.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertPurchaseOrder(ctx, PurchaseOrder{ID: "PO-BAD", SupplierID: "S001", ProductID: "P001", QuantityOrdered: 1, Status: POStatusPending}); err != nil {
			return err
		}
		deliveredAt := fixedClock(t, fixtureNow)()
		return tx.InsertPurchaseOrder(ctx, PurchaseOrder{
			ID: "PO-BAD-DELIVERED", SupplierID: "S002", ProductID: "P004", QuantityOrdered: 1,
			Status: POStatusDelivered, ActualDeliveryDate: &deliveredAt,
		})
	})
	require.NoError(t, err)

	reports, err := f.svc.GetPOStatusReport(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		require.NotContains(t, []string{"PO-BAD", "PO-BAD-DELIVERED"}, r.POID)
	}
}

func TestSendSupplierReminder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	reminder, err := f.svc.SendSupplierReminder(ctx, ReminderInput{POID: "PO-20250601-001", SupplierID: "S001"})
	require.NoError(t, err)
	require.Equal(t, "Urgent: Following up on delayed Purchase Order PO-20250601-001. Please provide an update.", reminder.Message)
	require.NotEmpty(t, reminder.ID)
	require.Len(t, f.publisher.reminders, 1)
	require.Equal(t, 1, f.metrics.reminders)

	custom, err := f.svc.SendSupplierReminder(ctx, ReminderInput{POID: "PO-20250601-001", SupplierID: "S001", Message: "Any news?"})
	require.NoError(t, err)
	require.Equal(t, "Any news?", custom.Message)
	require.NotEqual(t, reminder.ID, custom.ID)

	_, err = f.svc.SendSupplierReminder(ctx, ReminderInput{POID: "PO-20250601-001"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.SendSupplierReminder(ctx, ReminderInput{POID: "PO-20250601-001", SupplierID: "S002"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.SendSupplierReminder(ctx, ReminderInput{POID: "PO-404", SupplierID: "S001"})
	require.ErrorIs(t, err, ErrNotFound)

	log, err := f.svc.ListReminders(ctx)
	require.NoError(t, err)
	require.Len(t, log, 2)
}

func TestFollowUpDelayedRespectsInterval(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sent, err := f.svc.FollowUpDelayed(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, sent, 2)

	sent, err = f.svc.FollowUpDelayed(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, sent)

	sent, err = f.svc.FollowUpDelayed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sent, 2)
}

func TestConfirmDeliveryBooksStock(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	delivered, err := f.svc.ConfirmDelivery(ctx, "PO-20250701-002", time.Time{})
	require.NoError(t, err)
	require.Equal(t, POStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.ActualDeliveryDate)

	stock, err := f.repo.GetStock(ctx, "P001")
	require.NoError(t, err)
	require.Equal(t, 130, stock.QuantityOnHand)

	_, err = f.svc.ConfirmDelivery(ctx, "PO-20250701-002", time.Time{})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.MarkShipped(ctx, "PO-20250701-002")
	require.ErrorIs(t, err, ErrInvalidState)

	reports, err := f.svc.GetPOStatusReport(ctx)
	require.NoError(t, err)
	require.Equal(t, POStatusDelivered, reports[1].Assessment.Status)
	require.IsType(t, Delivered{}, reports[1].Assessment.Detail)
}

func TestConfirmDeliveryBeforeOrderDateRollsBack(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConfirmDelivery(ctx, "PO-20250701-002", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrInvalidArgument)

	po, err := f.repo.GetPurchaseOrder(ctx, "PO-20250701-002")
	require.NoError(t, err)
	require.Equal(t, POStatusPending, po.Status)
	stock, err := f.repo.GetStock(ctx, "P001")
	require.NoError(t, err)
	require.Equal(t, 80, stock.QuantityOnHand)
}

func TestMarkShipped(t *testing.T) {
	f := newServiceFixture(t)
	po, err := f.svc.MarkShipped(context.Background(), "PO-20250701-002")
	require.NoError(t, err)
	require.Equal(t, POStatusShipped, po.Status)

	_, err = f.svc.MarkShipped(context.Background(), "PO-404")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdjustStockRejectsNegativeBalance(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.AdjustStock(ctx, "P004", -3)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.svc.AdjustStock(ctx, "P004", 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.svc.AdjustStock(ctx, "P404", 1)
	require.ErrorIs(t, err, ErrNotFound)

	record, err := f.svc.AdjustStock(ctx, "P004", -2)
	require.NoError(t, err)
	require.Equal(t, 0, record.QuantityOnHand)
}

func TestRecordReturn(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	supplier := "S002"

	ticket, err := f.svc.RecordReturn(ctx, ReturnInput{ProductID: "P002", Quantity: 1, Reason: "defective", SupplierID: &supplier})
	require.NoError(t, err)
	require.Equal(t, "RT-20250720-002", ticket.ID)

	_, err = f.svc.RecordReturn(ctx, ReturnInput{ProductID: "P002", Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.svc.RecordReturn(ctx, ReturnInput{ProductID: "P404", Quantity: 1, Reason: "x"})
	require.ErrorIs(t, err, ErrNotFound)

	tickets, err := f.svc.ListReturns(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	stock, err := f.repo.GetStock(ctx, "P002")
	require.NoError(t, err)
	require.Equal(t, 10, stock.QuantityOnHand)
}

func TestPlaceOrderSkipsIDsTakenByAnotherProcess(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	clock := fixedClock(t, fixtureNow)
	other := NewService(f.repo, ServiceConfig{
		IDs:    NewSequenceGenerator(NewMemoryCounter(DemoCatalog().Counters()), clock),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  clock,
	})

	first, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{ProductID: "P001", Quantity: 50})
	require.NoError(t, err)
	require.Equal(t, "PO-20250720-003", first.ID)

	second, err := other.PlaceOrder(ctx, PlaceOrderInput{ProductID: "P001", Quantity: 50})
	require.NoError(t, err)
	require.Equal(t, "PO-20250720-004", second.ID)

	ticket, err := other.RecordReturn(ctx, ReturnInput{ProductID: "P001", Quantity: 1, Reason: "damaged"})
	require.NoError(t, err)
	again, err := f.svc.RecordReturn(ctx, ReturnInput{ProductID: "P001", Quantity: 1, Reason: "damaged"})
	require.NoError(t, err)
	require.NotEqual(t, ticket.ID, again.ID)

	orders, err := f.repo.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 4)
}

type fixedIDs struct{}

func (fixedIDs) NextID(context.Context, string) (string, error) { return "PO-20250601-001", nil }

func TestPlaceOrderGivesUpOnPersistentIDCollision(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewService(f.repo, ServiceConfig{IDs: fixedIDs{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{ProductID: "P001", Quantity: 50})
	require.ErrorIs(t, err, ErrDuplicateID)
	require.NotErrorIs(t, err, ErrInvalidArgument)
}
