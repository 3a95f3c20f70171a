// Package observability provides structured logging, Prometheus metrics, health checks and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the observability infrastructure shared by the
// billing engine, the scheduler and the HTTP API.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("invoice_id", 42).Info("invoice paid")
//
// Run-scoped logging:
//
//	ctx = observability.WithRunID(ctx, runID)
//	observability.FromContext(ctx).Info("billing run starting")
//
// # Prometheus Metrics
//
// All recording methods are safe on a nil *Metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordCharge("paid", elapsed)
//	metrics.RecordRun("succeeded", time.Since(start))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("database", true, observability.DatabaseCheck(db))
//	checker.AddCheck("redis", false, observability.RedisCheck(client))
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "billrun",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/billing: Emits charge metrics and spans
package observability
