package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/platinummonkey/billrun/pkg/httputil"
	"github.com/platinummonkey/billrun/pkg/observability"
	"github.com/platinummonkey/billrun/pkg/scheduler"
)

// TriggerRunResponse is returned when a run was accepted
type TriggerRunResponse struct {
	RunID string `json:"run_id"`
}

// triggerRun handles POST /v1/billing/runs. The lock is taken before
// answering so a busy system gets a 409; billing itself continues in the
// background after the 202.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Begin(r.Context(), scheduler.TriggerAPI)
	if errors.Is(err, scheduler.ErrRunInProgress) {
		httputil.WriteConflict(w, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err, "failed to start billing run")
		return
	}

	ctx := observability.WithRequestID(s.baseCtx, observability.GetRequestID(r.Context()))
	ctx = observability.WithRunID(ctx, run.ID())
	s.background.SafeGo(ctx, 0, "billing run", func(ctx context.Context) error {
		_, err := run.Execute(ctx)
		return err
	})

	httputil.WriteAccepted(w, TriggerRunResponse{RunID: run.ID()})
}

// listRuns handles GET /v1/billing/runs
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, nonNil(s.history.List()))
}

// getRun handles GET /v1/billing/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	record, found := s.history.Get(id)
	if !found {
		httputil.WriteNotFoundError(w, fmt.Sprintf("billing run %s not found", id))
		return
	}
	httputil.WriteSuccess(w, record)
}
