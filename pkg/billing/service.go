package billing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/billrun/pkg/observability"
)

const tracerName = "github.com/platinummonkey/billrun/pkg/billing"

// Service charges pending invoices through a payment provider
type Service struct {
	store    InvoiceStore
	provider PaymentProvider
	config   *Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// NewService creates a new billing Service. A nil config uses DefaultConfig,
// a nil logger writes info level JSON to stdout and a nil metrics disables metrics.
func NewService(store InvoiceStore, provider PaymentProvider, config *Config, logger *observability.Logger, metrics *observability.Metrics) *Service {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.IsFault == nil {
		cfg.IsFault = IsGatewayFault
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	return &Service{
		store:    store,
		provider: provider,
		config:   &cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// BillAllPending charges every customer that has pending invoices. Each
// customer is billed on its own goroutine; the call returns once all of them
// are done. Business failures are logged and never fail the run. The first
// fatal error cancels the remaining customers and is returned.
func (s *Service) BillAllPending(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "billing.run")
	defer func() { endSpan(span, err) }()

	invoices, err := s.store.FetchAllPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending invoices: %w", err)
	}

	groups := groupByCustomer(invoices)
	s.metrics.SetRunSize(len(groups), len(invoices))
	span.SetAttributes(
		attribute.Int("billing.customers", len(groups)),
		attribute.Int("billing.invoices", len(invoices)),
	)

	s.loggerFor(ctx).WithFields(map[string]interface{}{
		"customers": len(groups),
		"invoices":  len(invoices),
	}).Info("billing pending invoices")

	g, gctx := errgroup.WithContext(ctx)
	if s.config.MaxConcurrency > 0 {
		g.SetLimit(s.config.MaxConcurrency)
	}

	for _, group := range groups {
		g.Go(func() (err error) {
			defer func() {
				if perr := observability.PanicError(s.loggerFor(gctx).WithField("customer_id", group.customerID), "billing customer", recover()); perr != nil {
					err = fmt.Errorf("billing customer %d: %w", group.customerID, perr)
				}
			}()
			return s.BillCustomer(gctx, group.invoices)
		})
	}

	return g.Wait()
}

// loggerFor tags the service logger with the run id and trace ids found in ctx
func (s *Service) loggerFor(ctx context.Context) *observability.Logger {
	logger := s.logger
	if runID := observability.GetRunID(ctx); runID != "" {
		logger = logger.WithField("run_id", runID)
	}
	return observability.UpdateLoggerWithTraceContext(ctx, logger)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		if ce, ok := AsChargeError(err); ok {
			span.SetAttributes(attribute.String("billing.outcome", ce.Kind.String()))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
