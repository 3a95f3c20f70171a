package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Charge metrics
	ChargesTotal         *prometheus.CounterVec
	ChargeDuration       *prometheus.HistogramVec
	CustomersHaltedTotal prometheus.Counter

	// Run metrics
	RunsTotal    *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	RunCustomers prometheus.Gauge
	RunInvoices  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billrun_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billrun_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Charge metrics
		ChargesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billrun_charges_total",
				Help: "Total number of charge attempts by outcome",
			},
			[]string{"outcome"},
		),
		ChargeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billrun_charge_duration_seconds",
				Help:    "Payment provider call duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		CustomersHaltedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billrun_customers_halted_total",
				Help: "Customers whose remaining invoices were skipped after a decline",
			},
		),

		// Run metrics
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billrun_runs_total",
				Help: "Total number of billing runs by status",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "billrun_run_duration_seconds",
				Help:    "Billing run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 1800, 3600},
			},
		),
		RunCustomers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "billrun_run_customers",
				Help: "Customers with pending invoices in the latest run",
			},
		),
		RunInvoices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "billrun_run_invoices",
				Help: "Pending invoices in the latest run",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ChargesTotal,
		m.ChargeDuration,
		m.CustomersHaltedTotal,
		m.RunsTotal,
		m.RunDuration,
		m.RunCustomers,
		m.RunInvoices,
	)

	return m
}

// RecordCharge records the outcome of one charge attempt. A zero duration
// means the provider was not called and no latency is observed.
func (m *Metrics) RecordCharge(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChargesTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.ChargeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// RecordCustomerHalted counts a customer stopped by a decline
func (m *Metrics) RecordCustomerHalted() {
	if m == nil {
		return
	}
	m.CustomersHaltedTotal.Inc()
}

// RecordRun records a finished or skipped billing run
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		m.RunDuration.Observe(duration.Seconds())
	}
}

// SetRunSize records how much work the current run picked up
func (m *Metrics) SetRunSize(customers, invoices int) {
	if m == nil {
		return
	}
	m.RunCustomers.Set(float64(customers))
	m.RunInvoices.Set(float64(invoices))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePath returns the mux route template so ids do not explode label cardinality
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routePath(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
}
