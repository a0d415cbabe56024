package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/replenish/internal/jobs"
	"github.com/odyssey-erp/replenish/internal/replenishment"
)

// ReorderService is the part of replenishment.Service used by ReorderScanJob.
type ReorderService interface {
	GetReorderSuggestions(ctx context.Context) ([]replenishment.ReorderSuggestion, error)
	PlaceOrder(ctx context.Context, input replenishment.PlaceOrderInput) (replenishment.OrderConfirmation, error)
	ListPurchaseOrders(ctx context.Context) ([]replenishment.PurchaseOrder, error)
}

// ReorderScanJob logs reorder suggestions and optionally places the orders.
type ReorderScanJob struct {
	Service ReorderService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReorderScanJob initialises the reorder scan handler.
func NewReorderScanJob(service ReorderService, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanJob {
	return &ReorderScanJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the scan. A product without a usable supplier does not fail
// the run. With auto-order, products that still have an open PO are skipped so
// repeated runs and retries do not order the same shortfall twice.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("reorder scan: handler not configured")
	}
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReorderScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskReorderScan), slog.Bool("auto_order", payload.AutoOrder))

	suggestions, err := j.Service.GetReorderSuggestions(ctx)
	if err != nil {
		logger.Error("reorder scan failed", slog.Any("error", err))
		return err
	}
	metrics.AddItems(TaskReorderScan, "suggestions", len(suggestions))

	var open map[string]string
	if payload.AutoOrder {
		if open, err = openOrdersByProduct(ctx, j.Service); err != nil {
			logger.Error("reorder scan failed", slog.Any("error", err))
			return err
		}
	}

	placed, skipped := 0, 0
	for _, s := range suggestions {
		logger.Info("reorder suggested",
			slog.String("product_id", s.ProductID),
			slog.Int("on_hand", s.CurrentQuantityOnHand),
			slog.Int("reorder_point", s.CalculatedReorderPoint),
			slog.Int("quantity", s.SuggestedOrderQuantity),
		)
		if !payload.AutoOrder {
			continue
		}
		if poID, ok := open[s.ProductID]; ok {
			skipped++
			logger.Info("auto order skipped, open PO exists", slog.String("product_id", s.ProductID), slog.String("po_id", poID))
			continue
		}
		conf, err := j.Service.PlaceOrder(ctx, replenishment.PlaceOrderInput{
			ProductID: s.ProductID,
			Quantity:  s.SuggestedOrderQuantity,
			Goal:      replenishment.ParseGoal(payload.Goal),
		})
		if errors.Is(err, replenishment.ErrNotFound) {
			logger.Warn("auto order skipped", slog.String("product_id", s.ProductID), slog.Any("error", err))
			continue
		}
		if err != nil {
			logger.Error("auto order failed", slog.String("product_id", s.ProductID), slog.Int("placed", placed), slog.Any("error", err))
			return err
		}
		placed++
		open[s.ProductID] = conf.ID
		logger.Info("auto order placed", slog.String("po_id", conf.ID), slog.String("supplier_id", conf.SupplierID))
	}
	metrics.AddItems(TaskReorderScan, "orders", placed)
	logger.Info("completed reorder scan", slog.Int("suggestions", len(suggestions)), slog.Int("orders", placed), slog.Int("skipped_open", skipped))
	return nil
}

// openOrdersByProduct maps product ids to a PO that has not been delivered yet.
func openOrdersByProduct(ctx context.Context, service ReorderService) (map[string]string, error) {
	orders, err := service.ListPurchaseOrders(ctx)
	if err != nil {
		return nil, err
	}
	open := make(map[string]string, len(orders))
	for _, po := range orders {
		if po.Status == replenishment.POStatusDelivered {
			continue
		}
		if _, ok := open[po.ProductID]; !ok {
			open[po.ProductID] = po.ID
		}
	}
	return open, nil
}
