package replenishment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/replenish/internal/platform/httpx"
	"github.com/odyssey-erp/replenish/internal/shared"
)

const (
	// IdempotencyHeader carries the client supplied request key.
	IdempotencyHeader = "Idempotency-Key"
	// ActorHeader identifies the user acting through an upstream gateway.
	ActorHeader = "X-Actor-ID"
)

// IdempotencyPort guards POST endpoints against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes the replenishment API as JSON endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyPort
	validator   *validator.Validate
	reports     singleflight.Group
}

// NewHandler builds the handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyPort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers replenishment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(actorContext)
	r.Get("/reorder-suggestions", h.getReorderSuggestions)
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.idempotent("orders", h.createOrder))
	r.Post("/orders/{id}/ship", h.markShipped)
	r.Post("/orders/{id}/deliver", h.idempotent("deliveries", h.confirmDelivery))
	r.Get("/po-status", h.getPOStatus)
	r.Get("/supplier-reminders", h.listReminders)
	r.Post("/supplier-reminders", h.idempotent("reminders", h.sendReminder))
	r.Get("/returns", h.listReturns)
	r.Post("/returns", h.idempotent("returns", h.recordReturn))
	r.Post("/stock/{productID}/adjust", h.idempotent("stock", h.adjustStock))
}

func (h *Handler) getReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.GetReorderSuggestions(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]reorderSuggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, newReorderSuggestionResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	confirmation, err := h.service.PlaceOrder(r.Context(), PlaceOrderInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Goal:      Goal(req.OptimizationGoal),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, orderConfirmationResponse{
		purchaseOrderResponse: newPurchaseOrderResponse(confirmation.PurchaseOrder),
		SupplierName:          confirmation.SupplierName,
		OptimizationGoal:      confirmation.Goal,
		Score:                 confirmation.Score,
		Message:               confirmation.Message,
		ChosenSupplierReason:  confirmation.ChosenSupplierReason,
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListPurchaseOrders(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	status := POStatus(r.URL.Query().Get("status"))
	if status != "" {
		if !status.Valid() {
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status))
			return
		}
		filtered := orders[:0]
		for _, po := range orders {
			if po.Status == status {
				filtered = append(filtered, po)
			}
		}
		orders = filtered
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, len(orders))
	start, end := pagination.Bounds()
	items := make([]purchaseOrderResponse, 0, end-start)
	for _, po := range orders[start:end] {
		items = append(items, newPurchaseOrderResponse(po))
	}
	httpx.JSON(w, http.StatusOK, orderListResponse{Items: items, Pagination: pagination})
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.MarkShipped(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPurchaseOrderResponse(po))
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliverRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	var at time.Time
	if req.DeliveredAt != nil {
		at = req.DeliveredAt.UTC()
	}
	po, err := h.service.ConfirmDelivery(r.Context(), chi.URLParam(r, "id"), at)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPurchaseOrderResponse(po))
}

func (h *Handler) getPOStatus(w http.ResponseWriter, r *http.Request) {
	result, err, _ := h.reports.Do("po-status", func() (any, error) {
		return h.service.GetPOStatusReport(context.WithoutCancel(r.Context()))
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	reports := result.([]POStatusReport)
	out := make([]poStatusResponse, 0, len(reports))
	for _, report := range reports {
		out = append(out, newPOStatusResponse(report))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) sendReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if !h.decode(w, r, &req) {
		return
	}
	reminder, err := h.service.SendSupplierReminder(r.Context(), ReminderInput{
		POID:       req.POID,
		SupplierID: req.SupplierID,
		Message:    req.Message,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := newReminderResponse(reminder)
	resp.Message = fmt.Sprintf("Reminder %s successfully sent to supplier %s for PO %s.", reminder.ID, reminder.SupplierID, reminder.POID)
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) listReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.service.ListReminders(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	poID := r.URL.Query().Get("po_id")
	out := make([]reminderResponse, 0, len(reminders))
	for _, rem := range reminders {
		if poID != "" && rem.POID != poID {
			continue
		}
		out = append(out, newReminderResponse(rem))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) recordReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	ticket, err := h.service.RecordReturn(r.Context(), ReturnInput{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		SupplierID: req.SupplierID,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newReturnResponse(ticket))
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListReturns(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]returnResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, newReturnResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockAdjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	record, err := h.service.AdjustStock(r.Context(), chi.URLParam(r, "productID"), req.Change)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{
		ProductID:         record.ProductID,
		QuantityOnHand:    record.QuantityOnHand,
		WarehouseLocation: record.WarehouseLocation,
		UpdatedAt:         record.UpdatedAt,
	})
}

// actorContext attaches a numeric X-Actor-ID to the request context for audit.
func actorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get(ActorHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// idempotent rejects a repeated Idempotency-Key within module. The key is
// released again when the request fails so the client may retry.
func (h *Handler) idempotent(module string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if key == "" || h.idempotency == nil {
			next(w, r)
			return
		}
		if err := h.idempotency.CheckAndInsert(r.Context(), key, module); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
				return
			}
			h.logger.Error("idempotency check", slog.String("module", module), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r)
		if ww.Status() >= http.StatusBadRequest {
			if err := h.idempotency.Delete(context.WithoutCancel(r.Context()), key, module); err != nil {
				h.logger.Warn("idempotency release", slog.String("module", module), slog.Any("error", err))
			}
		}
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", httpx.ErrValidation))
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(msgs, "; ")))
			return false
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidState):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	default:
		h.logger.Error("replenishment request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
