// Package api is the ops and admin HTTP API of the billing service.
//
// Routes:
//
//	GET  /v1/invoices                 all invoices, ?status=PENDING|PAID filters
//	GET  /v1/invoices/{id}            one invoice
//	GET  /v1/customers                all customers
//	GET  /v1/customers/{id}/invoices  one customer's invoices
//	POST /v1/billing/runs             start a billing run: 202 {"run_id"} or 409
//	GET  /v1/billing/runs             recent runs, newest first
//	GET  /v1/billing/runs/{id}        one run
//	GET  /health, /health/live, /health/ready
//	GET  /metrics
//
// Invoice routes are read-only. Invoices only change state through billing runs.
package api
