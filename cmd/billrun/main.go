// Command billrun charges pending invoices on a schedule and serves the ops API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/billrun/pkg/api"
	"github.com/platinummonkey/billrun/pkg/async"
	"github.com/platinummonkey/billrun/pkg/config"
	"github.com/platinummonkey/billrun/pkg/observability"
	"github.com/platinummonkey/billrun/pkg/scheduler"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file (default: $BILLRUN_CONFIG_FILE)")
	runOnce    = flag.Bool("run-once", false, "Bill all pending invoices once and exit")
)

func main() {
	flag.Parse()

	boot := logrus.New()
	boot.SetFormatter(&logrus.JSONFormatter{})
	boot.SetOutput(os.Stderr)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		boot.WithError(err).Fatal("Failed to load configuration")
	}
	boot.WithFields(logrus.Fields{
		"storage": cfg.Storage.Type,
		"gateway": cfg.Gateway.Type,
		"lock":    cfg.Lock.URL != "",
	}).Info("Configuration loaded")

	ctx := context.Background()

	a, err := newApp(ctx, cfg)
	if err != nil {
		boot.WithError(err).Fatal("Failed to initialize")
	}

	if *runOnce {
		err := runOnceAndExit(ctx, a)
		if cerr := a.Close(); cerr != nil {
			boot.WithError(cerr).Warn("Failed to close resources")
		}
		if err != nil {
			boot.WithError(err).Error("Billing run failed")
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, a, *configPath); err != nil {
		boot.WithError(err).Fatal("Service stopped with errors")
	}
}

// runOnceAndExit performs a single billing run. A run skipped because
// another holder has the lock is not an error.
func runOnceAndExit(ctx context.Context, a *app) error {
	run, err := a.job.Begin(ctx, scheduler.TriggerCLI)
	if errors.Is(err, scheduler.ErrRunInProgress) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = run.Execute(ctx)
	return err
}

func serve(ctx context.Context, a *app, configFile string) error {
	cfg := a.cfg
	logger := a.logger

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		// tracing is optional
		logger.WithError(err).Warn("Failed to initialize OpenTelemetry")
	}

	// runCtx parents every billing run and is cancelled last during shutdown
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	background := async.NewGroup(logger)

	sched, err := scheduler.New(cfg.Billing.Schedule, a.job, logger)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(api.Config{
		Invoices:    a.store,
		Runs:        a.job,
		History:     a.history,
		Health:      a.health,
		Registry:    a.registry,
		Metrics:     a.metrics,
		Logger:      logger,
		Background:  background,
		BaseContext: runCtx,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	// functions run in reverse order of registration
	shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})
	shutdown.RegisterShutdownFunc("resources", func(ctx context.Context) error {
		return a.Close()
	})
	shutdown.RegisterShutdownFunc("background runs", func(ctx context.Context) error {
		err := background.Wait(ctx)
		cancelRuns()
		return err
	})
	shutdown.RegisterShutdownFunc("scheduler", sched.Stop)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	shutdown.RegisterShutdownFunc("config watcher", func(context.Context) error {
		stopWatch()
		return nil
	})

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Ops API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Ops API server failed")
			stopWaiting()
		}
	}()

	if configFile == "" {
		configFile = os.Getenv(config.EnvPrefix + "CONFIG_FILE")
	}
	if configFile != "" {
		background.SafeGo(watchCtx, 0, "config watcher", func(ctx context.Context) error {
			return config.Watch(ctx, configFile, logger, func(next *config.Config) {
				logger.SetLevel(observability.ParseLogLevel(next.Observability.LogLevel))
				if err := sched.Reschedule(next.Billing.Schedule); err != nil {
					logger.WithError(err).Warn("Ignoring new billing schedule")
				}
			})
		})
	}

	sched.Start()

	if cfg.Billing.RunOnStart {
		// a skipped or failed start is already logged and recorded by the job
		if run, err := a.job.Begin(runCtx, scheduler.TriggerStartup); err == nil {
			background.SafeGo(runCtx, 0, "startup billing run", func(ctx context.Context) error {
				_, err := run.Execute(ctx)
				return err
			})
		}
	}

	return shutdown.WaitForShutdown(waitCtx)
}
