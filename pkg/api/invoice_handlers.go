package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/billrun/pkg/billing"
	"github.com/platinummonkey/billrun/pkg/httputil"
	"github.com/platinummonkey/billrun/pkg/observability"
	"github.com/platinummonkey/billrun/pkg/storage"
)

// listInvoices handles GET /v1/invoices with an optional ?status= filter
func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	status := billing.InvoiceStatus(strings.ToUpper(httputil.ParseQueryString(r, "status", "")))
	if status != "" && !status.Valid() {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid status: %s", status))
		return
	}

	invoices, err := s.invoices.FetchInvoices(r.Context())
	if err != nil {
		s.internalError(w, r, err, "failed to list invoices")
		return
	}

	if status != "" {
		filtered := make([]billing.Invoice, 0, len(invoices))
		for _, inv := range invoices {
			if inv.Status == status {
				filtered = append(filtered, inv)
			}
		}
		invoices = filtered
	}

	httputil.WriteSuccess(w, nonNil(invoices))
}

// getInvoice handles GET /v1/invoices/{id}
func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	inv, err := s.invoices.FetchInvoice(r.Context(), id)
	if errors.Is(err, storage.ErrInvoiceNotFound) {
		httputil.WriteNotFoundError(w, fmt.Sprintf("invoice %d not found", id))
		return
	}
	if err != nil {
		s.internalError(w, r, err, "failed to fetch invoice")
		return
	}

	httputil.WriteSuccess(w, inv)
}

// listCustomers handles GET /v1/customers
func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.invoices.FetchCustomers(r.Context())
	if err != nil {
		s.internalError(w, r, err, "failed to list customers")
		return
	}
	httputil.WriteSuccess(w, nonNil(customers))
}

// listCustomerInvoices handles GET /v1/customers/{id}/invoices
func (s *Server) listCustomerInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	invoices, err := s.invoices.FetchCustomerInvoices(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err, "failed to list customer invoices")
		return
	}
	httputil.WriteSuccess(w, nonNil(invoices))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	observability.FromContext(r.Context()).WithError(err).Error(msg)
	httputil.WriteInternalError(w)
}

// nonNil makes empty results encode as [] instead of null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
