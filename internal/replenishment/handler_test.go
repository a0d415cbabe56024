package replenishment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/replenish/internal/shared"
)

func newTestRouter(t *testing.T, idempotency IdempotencyPort) (http.Handler, serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, idempotency)
	r := chi.NewRouter()
	r.Route("/api/inventory", handler.MountRoutes)
	return r, f
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateOrder(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":"P001","quantity":50,"optimization_goal":"balance"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PO-20250720-003", body["po_id"])
	require.Equal(t, "S001", body["supplier_id"])
	require.Equal(t, "480", body["unit_price"])
	require.Equal(t, "24000", body["total"])
	require.Equal(t, "pending", body["status"])
	require.Contains(t, body["chosen_supplier_reason"], "Lead Time: 7 days")
}

func TestHandlerCreateOrderValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":"P001","quantity":0}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":"P404","quantity":5}`, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":"P002","quantity":2}`, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "no supplier meets MOQ")
}

func TestHandlerPOStatusOmitsDaysOverdueUnlessDelayed(t *testing.T) {
	router, f := newTestRouter(t, nil)
	_, err := f.svc.ConfirmDelivery(context.Background(), "PO-20250701-002", time.Time{})
	require.NoError(t, err)

	rr := doJSON(t, router, http.MethodGet, "/api/inventory/po-status", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var reports []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	require.Equal(t, "delayed", reports[0]["current_status"])
	require.EqualValues(t, 42, reports[0]["days_overdue"])
	require.Equal(t, "delivered", reports[1]["current_status"])
	require.NotContains(t, reports[1], "days_overdue")
}

func TestHandlerReorderSuggestions(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rr := doJSON(t, router, http.MethodGet, "/api/inventory/reorder-suggestions", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var suggestions []reorderSuggestionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &suggestions))
	require.Len(t, suggestions, 3)
	require.Equal(t, "P002", suggestions[0].ProductID)
}

func TestHandlerSupplierReminder(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/inventory/supplier-reminders", `{"po_id":"PO-20250601-001","supplier_id":"S001"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp reminderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.ReminderMessage, "Urgent: Following up")
	require.Contains(t, resp.Message, "successfully sent to supplier S001")

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/supplier-reminders", `{"po_id":"PO-20250601-001"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/inventory/supplier-reminders?po_id=PO-20250601-001", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var log []reminderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &log))
	require.Len(t, log, 1)
}

func TestHandlerDeliveryLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/inventory/orders/PO-20250701-002/ship", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders/PO-20250701-002/deliver", `{"delivered_at":"2025-07-18T08:00:00Z"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders/PO-20250701-002/deliver", "", nil)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/inventory/orders?status=delivered", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list orderListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, 1, list.Pagination.Total)

	rr = doJSON(t, router, http.MethodGet, "/api/inventory/orders?status=lost", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerReturnsAndStock(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/inventory/returns", `{"product_id":"P001","quantity_returned":2,"return_reason":"wrong color"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/inventory/returns", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tickets []returnResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tickets))
	require.Len(t, tickets, 2)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/stock/P004/adjust", `{"change":-5}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/stock/P004/adjust", `{"change":3}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stock stockResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stock))
	require.Equal(t, 5, stock.QuantityOnHand)
}

func TestHandlerIdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	router, f := newTestRouter(t, shared.NewIdempotencyStore(client, time.Hour))

	headers := map[string]string{IdempotencyHeader: "order-1"}
	body := `{"product_id":"P004","quantity":1}`

	rr := doJSON(t, router, http.MethodPost, "/api/inventory/orders", body, headers)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders", body, headers)
	require.Equal(t, http.StatusConflict, rr.Code)

	orders, err := f.svc.ListPurchaseOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 3)

	failing := map[string]string{IdempotencyHeader: "order-2"}
	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":"P404","quantity":1}`, failing)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders", body, failing)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestHandlerAuditCarriesActorHeader(t *testing.T) {
	router, f := newTestRouter(t, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":"P004","quantity":2}`, map[string]string{ActorHeader: "17"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotEmpty(t, f.audit.logs)
	last := f.audit.logs[len(f.audit.logs)-1]
	require.Equal(t, "PO_CREATE", last.Action)
	require.Equal(t, int64(17), last.ActorID)

	rr = doJSON(t, router, http.MethodPost, "/api/inventory/orders", `{"product_id":"P004","quantity":2}`, map[string]string{ActorHeader: "not-a-number"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Zero(t, f.audit.logs[len(f.audit.logs)-1].ActorID)
}

func TestHandlerListOrdersClampsPagination(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doJSON(t, router, http.MethodGet, "/api/inventory/orders?page=3&per_page=4611686018427387904", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Items      []map[string]any  `json:"items"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Empty(t, body.Items)
	require.Equal(t, shared.MaxPerPage, body.Pagination.PerPage)

	rr = doJSON(t, router, http.MethodGet, "/api/inventory/orders?page=9223372036854775807&per_page=100", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}
