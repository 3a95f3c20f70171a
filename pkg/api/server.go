package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/billrun/pkg/async"
	"github.com/platinummonkey/billrun/pkg/httputil"
	"github.com/platinummonkey/billrun/pkg/observability"
	"github.com/platinummonkey/billrun/pkg/scheduler"
	"github.com/platinummonkey/billrun/pkg/storage"
)

// RunStarter begins billing runs. *scheduler.Job implements it.
type RunStarter interface {
	Begin(ctx context.Context, trigger string) (*scheduler.Run, error)
}

// Config wires the ops API to the rest of the process
type Config struct {
	Invoices storage.InvoiceReader
	Runs     RunStarter
	History  *scheduler.History

	Health   *observability.HealthChecker
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Logger   *observability.Logger

	// Background runs billing started over HTTP. Shutdown waits on it.
	Background *async.Group

	// BaseContext is the parent of billing runs started over HTTP. It
	// outlives the request; cancel it to stop such runs.
	BaseContext context.Context
}

// Server is the ops and admin API
type Server struct {
	invoices   storage.InvoiceReader
	runs       RunStarter
	history    *scheduler.History
	background *async.Group
	baseCtx    context.Context
	logger     *observability.Logger
	router     *mux.Router
	handler    http.Handler
}

// NewServer creates the API server and registers its routes
func NewServer(config Config) *Server {
	if config.Logger == nil {
		config.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if config.Background == nil {
		config.Background = async.NewGroup(config.Logger)
	}
	if config.BaseContext == nil {
		config.BaseContext = context.Background()
	}

	s := &Server{
		invoices:   config.Invoices,
		runs:       config.Runs,
		history:    config.History,
		background: config.Background,
		baseCtx:    config.BaseContext,
		logger:     config.Logger,
		router:     mux.NewRouter(),
	}
	s.setupRoutes(config)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "billrun-api")
	return s
}

func (s *Server) setupRoutes(config Config) {
	s.router.Use(observability.HTTPMetricsMiddleware(config.Metrics))

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Invoices and customers
	v1.HandleFunc("/invoices", s.listInvoices).Methods(http.MethodGet)
	v1.HandleFunc("/invoices/{id}", s.getInvoice).Methods(http.MethodGet)
	v1.HandleFunc("/customers", s.listCustomers).Methods(http.MethodGet)
	v1.HandleFunc("/customers/{id}/invoices", s.listCustomerInvoices).Methods(http.MethodGet)

	// Billing runs
	v1.HandleFunc("/billing/runs", s.triggerRun).Methods(http.MethodPost)
	v1.HandleFunc("/billing/runs", s.listRuns).Methods(http.MethodGet)
	v1.HandleFunc("/billing/runs/{id}", s.getRun).Methods(http.MethodGet)

	if config.Health != nil {
		observability.RegisterHealthRoutes(s.router, config.Health)
	}
	if config.Registry != nil {
		observability.RegisterMetricsEndpoint(s.router, config.Registry)
	}
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped with request ids, logging, panic
// recovery and tracing
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
