package replenishment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/replenish/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetStock(ctx context.Context, productID string) (StockRecord, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error)
	ListReminders(ctx context.Context) ([]SupplierReminder, error)
	ListReturns(ctx context.Context) ([]ReturnTicket, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates replenishment flows over the entity store.
type Service struct {
	repo        RepositoryPort
	ids         IDGenerator
	reminderIDs IDGenerator
	events      EventPublisher
	metrics     MetricsRecorder
	audit       AuditPort
	logger      *slog.Logger
	clock       func() time.Time
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	IDs         IDGenerator
	ReminderIDs IDGenerator
	Events      EventPublisher
	Metrics     MetricsRecorder
	Audit       AuditPort
	Logger      *slog.Logger
	Clock       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	svc := &Service{
		repo:        repo,
		ids:         cfg.IDs,
		reminderIDs: cfg.ReminderIDs,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		audit:       cfg.Audit,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
	}
	if svc.ids == nil {
		svc.ids = NewSequenceGenerator(NewMemoryCounter(nil), nil)
	}
	if svc.reminderIDs == nil {
		svc.reminderIDs = UUIDGenerator{}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.clock == nil {
		svc.clock = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

// GetReorderSuggestions evaluates every known product against its stock.
func (s *Service) GetReorderSuggestions(ctx context.Context) ([]ReorderSuggestion, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	suppliers, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	suggestions := make([]ReorderSuggestion, 0)
	for _, product := range products {
		stock, err := s.repo.GetStock(ctx, product.ID)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("no stock info for product, skipping", slog.String("product_id", product.ID))
			continue
		}
		if err != nil {
			return nil, err
		}
		eligible := offering(product.ID, suppliers)
		if len(eligible) == 0 {
			s.logger.Warn("no supplier for product, using default lead time",
				slog.String("product_id", product.ID),
				slog.Int("lead_time_days", DefaultLeadTimeDays),
			)
		}
		if suggestion, ok := SuggestReorder(product, &stock, eligible); ok {
			suggestions = append(suggestions, suggestion)
		}
	}
	if s.metrics != nil {
		s.metrics.ReorderSuggestions(len(suggestions))
	}
	return suggestions, nil
}

// PlaceOrderInput describes an order request.
type PlaceOrderInput struct {
	ProductID string
	Quantity  int
	Goal      Goal
}

// OrderConfirmation is the stored PO plus an explanation of the supplier choice.
type OrderConfirmation struct {
	PurchaseOrder
	SupplierName         string
	Goal                 Goal
	Score                float64
	Message              string
	ChosenSupplierReason string
}

// PlaceOrder selects a supplier and records a pending purchase order. Stock is
// left untouched until delivery is confirmed.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (OrderConfirmation, error) {
	if input.ProductID == "" {
		return OrderConfirmation{}, fmt.Errorf("%w: product_id is required", ErrInvalidArgument)
	}
	if input.Quantity <= 0 {
		return OrderConfirmation{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	goal := ParseGoal(string(input.Goal))

	product, err := s.repo.GetProduct(ctx, input.ProductID)
	if err != nil {
		return OrderConfirmation{}, err
	}
	suppliers, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return OrderConfirmation{}, err
	}
	selection, err := SelectSupplier(product.ID, input.Quantity, goal, suppliers, func(sup Supplier, moq int) {
		s.logger.Warn("supplier MOQ not met, skipping",
			slog.String("supplier_id", sup.ID),
			slog.String("product_id", product.ID),
			slog.Int("moq", moq),
			slog.Int("quantity", input.Quantity),
		)
	})
	if err != nil {
		return OrderConfirmation{}, fmt.Errorf("place order for %s (qty %d): %w", product.ID, input.Quantity, err)
	}

	orderDate := s.clock()
	chosen := selection.Supplier
	po := PurchaseOrder{
		SupplierID:           chosen.ID,
		ProductID:            product.ID,
		QuantityOrdered:      input.Quantity,
		UnitPrice:            selection.Offer.Price,
		OrderDate:            orderDate,
		ExpectedDeliveryDate: orderDate.AddDate(0, 0, chosen.AverageLeadTimeDays),
		Status:               POStatusPending,
	}
	err = s.insertWithID(ctx, PrefixPurchaseOrder, func(ctx context.Context, tx TxRepository, id string) error {
		po.ID = id
		return tx.InsertPurchaseOrder(ctx, po)
	})
	if err != nil {
		return OrderConfirmation{}, err
	}

	s.logger.Info("purchase order placed",
		slog.String("po_id", po.ID),
		slog.String("supplier_id", po.SupplierID),
		slog.String("product_id", po.ProductID),
		slog.Int("quantity", po.QuantityOrdered),
		slog.String("goal", string(goal)),
		slog.Float64("score", selection.Score),
	)
	s.recordAudit(ctx, "PO_CREATE", po.ID, map[string]any{"supplier_id": po.SupplierID, "goal": string(goal), "total": po.Total().String()})
	if s.metrics != nil {
		s.metrics.OrderPlaced(goal)
	}
	if s.events != nil {
		evt := OrderPlacedEvent{
			POID:                 po.ID,
			SupplierID:           po.SupplierID,
			ProductID:            po.ProductID,
			Quantity:             po.QuantityOrdered,
			UnitPrice:            po.UnitPrice.String(),
			Goal:                 goal,
			Score:                selection.Score,
			OrderDate:            po.OrderDate,
			ExpectedDeliveryDate: po.ExpectedDeliveryDate,
		}
		if err := s.events.PublishOrderPlaced(ctx, evt); err != nil {
			s.logger.Warn("publish order placed", slog.String("po_id", po.ID), slog.Any("error", err))
		}
	}

	return OrderConfirmation{
		PurchaseOrder: po,
		SupplierName:  chosen.Name,
		Goal:          goal,
		Score:         selection.Score,
		Message: fmt.Sprintf("Order placed for %d units of %s from %s. Chosen for: %s optimization.",
			input.Quantity, product.Name, chosen.Name, goal),
		ChosenSupplierReason: fmt.Sprintf("Best score (%s) based on %s. Price: %s, Lead Time: %d days, Reliability: %s%%.",
			formatFloat(selection.Score), goal, selection.Offer.Price.String(), chosen.AverageLeadTimeDays,
			formatFloat(chosen.OnTimeDeliveryRate*100)),
	}, nil
}

// POStatusReport is one line of the status report.
type POStatusReport struct {
	POID                 string
	ProductID            string
	SupplierID           string
	QuantityOrdered      int
	OrderDate            time.Time
	ExpectedDeliveryDate time.Time
	Assessment           Assessment
}

// GetPOStatusReport assesses every stored PO against the current time. POs with
// unusable dates are logged and left out.
func (s *Service) GetPOStatusReport(ctx context.Context) ([]POStatusReport, error) {
	pos, err := s.repo.ListPurchaseOrders(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	reports := make([]POStatusReport, 0, len(pos))
	delayed := 0
	for _, po := range pos {
		assessment, err := EffectiveStatus(po, now)
		if err != nil {
			s.logger.Warn("invalid expected_delivery_date, skipping PO", slog.String("po_id", po.ID), slog.Any("error", err))
			continue
		}
		if assessment.Status == POStatusDelayed {
			delayed++
		}
		reports = append(reports, POStatusReport{
			POID:                 po.ID,
			ProductID:            po.ProductID,
			SupplierID:           po.SupplierID,
			QuantityOrdered:      po.QuantityOrdered,
			OrderDate:            po.OrderDate,
			ExpectedDeliveryDate: po.ExpectedDeliveryDate,
			Assessment:           assessment,
		})
	}
	if s.metrics != nil {
		s.metrics.DelayedPurchaseOrders(delayed)
	}
	return reports, nil
}

// ReminderInput describes a supplier follow-up.
type ReminderInput struct {
	POID       string
	SupplierID string
	Message    string
}

// DefaultReminderMessage is used when no message is supplied.
func DefaultReminderMessage(poID string) string {
	return fmt.Sprintf("Urgent: Following up on delayed Purchase Order %s. Please provide an update.", poID)
}

// SendSupplierReminder records a follow-up against a PO. The PO must exist and
// belong to the given supplier.
func (s *Service) SendSupplierReminder(ctx context.Context, input ReminderInput) (SupplierReminder, error) {
	if input.POID == "" || input.SupplierID == "" {
		return SupplierReminder{}, fmt.Errorf("%w: po_id and supplier_id are required", ErrInvalidArgument)
	}
	po, err := s.repo.GetPurchaseOrder(ctx, input.POID)
	if err != nil {
		return SupplierReminder{}, err
	}
	if po.SupplierID != input.SupplierID {
		return SupplierReminder{}, fmt.Errorf("%w: PO %s is not placed with supplier %s", ErrInvalidArgument, po.ID, input.SupplierID)
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		message = DefaultReminderMessage(input.POID)
	}
	id, err := s.reminderIDs.NextID(ctx, PrefixReminder)
	if err != nil {
		return SupplierReminder{}, err
	}
	reminder := SupplierReminder{
		ID:         id,
		POID:       input.POID,
		SupplierID: input.SupplierID,
		Message:    message,
		SentAt:     s.clock(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertReminder(ctx, reminder)
	})
	if err != nil {
		return SupplierReminder{}, err
	}

	s.logger.Info("supplier reminder recorded",
		slog.String("reminder_id", reminder.ID),
		slog.String("po_id", reminder.POID),
		slog.String("supplier_id", reminder.SupplierID),
	)
	if s.metrics != nil {
		s.metrics.ReminderSent()
	}
	if s.events != nil {
		evt := ReminderIssuedEvent{
			ReminderID: reminder.ID,
			POID:       reminder.POID,
			SupplierID: reminder.SupplierID,
			Message:    reminder.Message,
			SentAt:     reminder.SentAt,
		}
		if err := s.events.PublishReminderIssued(ctx, evt); err != nil {
			s.logger.Warn("publish reminder issued", slog.String("reminder_id", reminder.ID), slog.Any("error", err))
		}
	}
	return reminder, nil
}

// FollowUpDelayed sends the default reminder for each delayed PO that has not
// been reminded within minInterval.
func (s *Service) FollowUpDelayed(ctx context.Context, minInterval time.Duration) ([]SupplierReminder, error) {
	reports, err := s.GetPOStatusReport(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListReminders(ctx)
	if err != nil {
		return nil, err
	}
	lastSent := make(map[string]time.Time, len(history))
	for _, r := range history {
		if r.SentAt.After(lastSent[r.POID]) {
			lastSent[r.POID] = r.SentAt
		}
	}
	now := s.clock()
	var sent []SupplierReminder
	for _, report := range reports {
		if report.Assessment.Status != POStatusDelayed {
			continue
		}
		if last, ok := lastSent[report.POID]; ok && now.Sub(last) < minInterval {
			continue
		}
		reminder, err := s.SendSupplierReminder(ctx, ReminderInput{POID: report.POID, SupplierID: report.SupplierID})
		if err != nil {
			return sent, err
		}
		sent = append(sent, reminder)
	}
	return sent, nil
}

// ListPurchaseOrders returns every stored PO.
func (s *Service) ListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx)
}

// ListReminders returns the reminder log.
func (s *Service) ListReminders(ctx context.Context) ([]SupplierReminder, error) {
	return s.repo.ListReminders(ctx)
}

// ListReturns returns all return tickets.
func (s *Service) ListReturns(ctx context.Context) ([]ReturnTicket, error) {
	return s.repo.ListReturns(ctx)
}

// MarkShipped records that the supplier dispatched the order.
func (s *Service) MarkShipped(ctx context.Context, poID string) (PurchaseOrder, error) {
	if poID == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: po_id is required", ErrInvalidArgument)
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if po.Status == POStatusDelivered {
			return ErrInvalidState
		}
		po.Status = POStatusShipped
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_SHIP", updated.ID, nil)
	return updated, nil
}

// ConfirmDelivery marks the PO delivered and books the ordered quantity into
// stock in the same transaction. A zero at uses the current time.
func (s *Service) ConfirmDelivery(ctx context.Context, poID string, at time.Time) (PurchaseOrder, error) {
	if poID == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: po_id is required", ErrInvalidArgument)
	}
	if at.IsZero() {
		at = s.clock()
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if po.Status == POStatusDelivered {
			return ErrInvalidState
		}
		if at.Before(po.OrderDate) {
			return fmt.Errorf("%w: delivery date precedes order date", ErrInvalidArgument)
		}
		delivered := at
		po.Status = POStatusDelivered
		po.ActualDeliveryDate = &delivered
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		if _, err := tx.AdjustStock(ctx, po.ProductID, po.QuantityOrdered, at); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.logger.Info("purchase order delivered", slog.String("po_id", updated.ID), slog.Int("quantity", updated.QuantityOrdered))
	s.recordAudit(ctx, "PO_DELIVER", updated.ID, map[string]any{"quantity": updated.QuantityOrdered})
	return updated, nil
}

// AdjustStock applies a signed change to a product's on-hand quantity.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (StockRecord, error) {
	if productID == "" || delta == 0 {
		return StockRecord{}, fmt.Errorf("%w: product_id and a non-zero change are required", ErrInvalidArgument)
	}
	var record StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		record, err = tx.AdjustStock(ctx, productID, delta, s.clock())
		return err
	})
	if err != nil {
		return StockRecord{}, err
	}
	return record, nil
}

// ReturnInput describes a return ticket request.
type ReturnInput struct {
	ProductID  string
	Quantity   int
	Reason     string
	SupplierID *string
}

// RecordReturn stores a return ticket. Stock is not changed.
func (s *Service) RecordReturn(ctx context.Context, input ReturnInput) (ReturnTicket, error) {
	if input.ProductID == "" || input.Quantity <= 0 || strings.TrimSpace(input.Reason) == "" {
		return ReturnTicket{}, fmt.Errorf("%w: product_id, positive quantity and reason are required", ErrInvalidArgument)
	}
	if _, err := s.repo.GetProduct(ctx, input.ProductID); err != nil {
		return ReturnTicket{}, err
	}
	ticket := ReturnTicket{
		ProductID:        input.ProductID,
		QuantityReturned: input.Quantity,
		Reason:           input.Reason,
		ReturnedAt:       s.clock(),
		SupplierID:       input.SupplierID,
	}
	err := s.insertWithID(ctx, PrefixReturn, func(ctx context.Context, tx TxRepository, id string) error {
		ticket.ID = id
		return tx.InsertReturn(ctx, ticket)
	})
	if err != nil {
		return ReturnTicket{}, err
	}
	s.recordAudit(ctx, "RETURN_CREATE", ticket.ID, map[string]any{"product_id": ticket.ProductID, "quantity": ticket.QuantityReturned})
	return ticket, nil
}

// maxIDAttempts bounds how many sequence values are tried when another
// process already used the generated id.
const maxIDAttempts = 5

// insertWithID draws an id for prefix and runs insert in a transaction,
// drawing a fresh id when the store reports ErrDuplicateID.
func (s *Service) insertWithID(ctx context.Context, prefix string, insert func(context.Context, TxRepository, string) error) error {
	var err error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		var id string
		id, err = s.ids.NextID(ctx, prefix)
		if err != nil {
			return err
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return insert(ctx, tx, id)
		})
		if !errors.Is(err, ErrDuplicateID) {
			return err
		}
		s.logger.Warn("generated id already taken, retrying", slog.String("id", id), slog.Int("attempt", attempt))
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: shared.ActorFromContext(ctx), Action: action, Entity: "replenishment", EntityID: entityID, Meta: meta, At: s.clock()}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
