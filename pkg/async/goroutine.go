package async

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/billrun/pkg/observability"
)

// Group runs background tasks with panic recovery and lets shutdown wait
// for them. The zero value is not usable; use NewGroup.
//
// Example:
//
//	g.SafeGo(ctx, 0, "billing run", func(ctx context.Context) error {
//	    _, err := run.Execute(ctx)
//	    return err
//	})
type Group struct {
	logger *observability.Logger
	wg     sync.WaitGroup
}

// NewGroup creates a Group that logs task failures to logger
func NewGroup(logger *observability.Logger) *Group {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Group{logger: logger}
}

// SafeGo executes fn in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Optional timeout (zero means none)
// - Error logging
//
// Use this instead of bare `go func()` so background work cannot crash the
// process or outlive shutdown unnoticed.
func (g *Group) SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx := parentCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
			defer cancel()
		}

		logger := g.logger.WithField("task", taskName)
		if runID := observability.GetRunID(ctx); runID != "" {
			logger = logger.WithField("run_id", runID)
		}

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			// Caller decides how critical this is; we only report it
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

// Wait blocks until every task started with SafeGo has returned or ctx is done
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
