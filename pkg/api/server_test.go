package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/billrun/pkg/async"
	"github.com/platinummonkey/billrun/pkg/billing"
	"github.com/platinummonkey/billrun/pkg/observability"
	"github.com/platinummonkey/billrun/pkg/scheduler"
	"github.com/platinummonkey/billrun/pkg/storage"
	"github.com/platinummonkey/billrun/pkg/storage/memory"
)

// blockingBiller waits on release before returning
type blockingBiller struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (b *blockingBiller) BillAllPending(ctx context.Context) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.release != nil {
		<-b.release
	}
	return nil
}

type testEnv struct {
	server     *Server
	store      *memory.Store
	job        *scheduler.Job
	background *async.Group
}

func newTestEnv(t *testing.T, biller scheduler.Biller) *testEnv {
	t.Helper()

	store := memory.New()
	eur := func(v int64) billing.Money { return billing.Money{Value: decimal.New(v, -2), Currency: billing.CurrencyEUR} }
	require.NoError(t, store.Seed(context.Background(), storage.SeedData{
		Customers: []billing.Customer{{ID: 1, Currency: billing.CurrencyEUR}, {ID: 2, Currency: billing.CurrencyEUR}},
		Invoices: []billing.Invoice{
			{ID: 1, CustomerID: 1, Amount: eur(1000), Status: billing.InvoiceStatusPaid},
			{ID: 2, CustomerID: 1, Amount: eur(2550), Status: billing.InvoiceStatusPending},
			{ID: 3, CustomerID: 2, Amount: eur(999), Status: billing.InvoiceStatusPending},
		},
	}))

	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	history := scheduler.NewHistory(10)
	job := scheduler.NewJob(biller, nil, history, logger, nil)
	registry := prometheus.NewRegistry()
	background := async.NewGroup(logger)

	health := observability.NewHealthChecker("test")
	health.AddCheck("storage", true, store.HealthCheck)

	server := NewServer(Config{
		Invoices:   store,
		Runs:       job,
		History:    history,
		Health:     health,
		Registry:   registry,
		Metrics:    observability.NewMetrics(registry),
		Logger:     logger,
		Background: background,
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		background.Wait(ctx)
	})

	return &testEnv{server: server, store: store, job: job, background: background}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestListInvoices(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})

	w := env.do(t, http.MethodGet, "/v1/invoices")
	require.Equal(t, http.StatusOK, w.Code)
	invoices := decode[[]billing.Invoice](t, w)
	require.Len(t, invoices, 3)
	assert.Equal(t, int64(1), invoices[0].ID)
	assert.True(t, decimal.New(2550, -2).Equal(invoices[1].Amount.Value))
}

func TestListInvoices_StatusFilter(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})

	w := env.do(t, http.MethodGet, "/v1/invoices?status=pending")
	require.Equal(t, http.StatusOK, w.Code)
	invoices := decode[[]billing.Invoice](t, w)
	require.Len(t, invoices, 2)
	for _, inv := range invoices {
		assert.Equal(t, billing.InvoiceStatusPending, inv.Status)
	}

	w = env.do(t, http.MethodGet, "/v1/invoices?status=REFUNDED")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInvoice(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})

	w := env.do(t, http.MethodGet, "/v1/invoices/3")
	require.Equal(t, http.StatusOK, w.Code)
	inv := decode[billing.Invoice](t, w)
	assert.Equal(t, int64(2), inv.CustomerID)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/invoices/99").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/invoices/abc").Code)
}

func TestCustomers(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})

	w := env.do(t, http.MethodGet, "/v1/customers")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]billing.Customer](t, w), 2)

	w = env.do(t, http.MethodGet, "/v1/customers/1/invoices")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]billing.Invoice](t, w), 2)

	w = env.do(t, http.MethodGet, "/v1/customers/42/invoices")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestTriggerRun(t *testing.T) {
	biller := &blockingBiller{release: make(chan struct{})}
	env := newTestEnv(t, biller)

	w := env.do(t, http.MethodPost, "/v1/billing/runs")
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[TriggerRunResponse](t, w)
	require.NotEmpty(t, resp.RunID)

	// a second trigger while the first holds the lock
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/v1/billing/runs").Code)

	w = env.do(t, http.MethodGet, "/v1/billing/runs/"+resp.RunID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scheduler.RunStatusRunning, decode[scheduler.RunRecord](t, w).Status)

	close(biller.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.background.Wait(ctx))

	w = env.do(t, http.MethodGet, "/v1/billing/runs/"+resp.RunID)
	require.Equal(t, http.StatusOK, w.Code)
	record := decode[scheduler.RunRecord](t, w)
	assert.Equal(t, scheduler.RunStatusSucceeded, record.Status)
	assert.Equal(t, scheduler.TriggerAPI, record.Trigger)

	w = env.do(t, http.MethodGet, "/v1/billing/runs")
	require.Equal(t, http.StatusOK, w.Code)
	runs := decode[[]scheduler.RunRecord](t, w)
	require.Len(t, runs, 2, "the accepted run and the skipped one")
}

func TestTriggerRun_ChargesPendingInvoices(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})
	provider := billingProviderFunc(func(ctx context.Context, inv billing.Invoice) (bool, error) { return true, nil })
	env.job.Service = billing.NewService(env.store, provider, nil, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}), nil)

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/v1/billing/runs").Code)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.background.Wait(ctx))

	w := env.do(t, http.MethodGet, "/v1/invoices?status=PENDING")
	assert.JSONEq(t, `[]`, w.Body.String())
}

type billingProviderFunc func(ctx context.Context, inv billing.Invoice) (bool, error)

func (f billingProviderFunc) Charge(ctx context.Context, inv billing.Invoice) (bool, error) {
	return f(ctx, inv)
}

type failingStarter struct{}

func (failingStarter) Begin(ctx context.Context, trigger string) (*scheduler.Run, error) {
	return nil, errors.New("redis down")
}

func TestTriggerRun_LockError(t *testing.T) {
	server := NewServer(Config{
		Runs:    failingStarter{},
		History: scheduler.NewHistory(1),
		Logger:  observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}),
	})

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/billing/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetRun_NotFound(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/billing/runs/nope").Code)

	w := env.do(t, http.MethodGet, "/v1/billing/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready").Code)

	env.do(t, http.MethodGet, "/v1/customers")
	w := env.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "billrun_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/v1/customers"`)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, &blockingBiller{})
	w := env.do(t, http.MethodGet, "/v1/customers")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
