package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/replenish/internal/replenishment"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ordersPlaced    *prometheus.CounterVec
	remindersSent   prometheus.Counter
	delayedPOs      prometheus.Gauge
	suggestions     prometheus.Gauge
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik replenishment.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replenish_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replenish_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replenish_orders_placed_total",
		Help: "Purchase order yang dibuat per optimization goal.",
	}, []string{"goal"})
	reminders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replenish_supplier_reminders_total",
		Help: "Reminder yang dikirim ke supplier.",
	})
	delayed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replenish_delayed_purchase_orders",
		Help: "Jumlah PO berstatus delayed pada laporan terakhir.",
	})
	suggestions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replenish_reorder_suggestions",
		Help: "Jumlah saran reorder pada perhitungan terakhir.",
	})
	registry.MustRegister(
		requests, duration, orders, reminders, delayed, suggestions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ordersPlaced:    orders,
		remindersSent:   reminders,
		delayedPOs:      delayed,
		suggestions:     suggestions,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// OrderPlaced implements replenishment.MetricsRecorder.
func (m *Metrics) OrderPlaced(goal replenishment.Goal) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(string(goal)).Inc()
}

// ReminderSent implements replenishment.MetricsRecorder.
func (m *Metrics) ReminderSent() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}

// DelayedPurchaseOrders implements replenishment.MetricsRecorder.
func (m *Metrics) DelayedPurchaseOrders(n int) {
	if m == nil {
		return
	}
	m.delayedPOs.Set(float64(n))
}

// ReorderSuggestions implements replenishment.MetricsRecorder.
func (m *Metrics) ReorderSuggestions(n int) {
	if m == nil {
		return
	}
	m.suggestions.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
