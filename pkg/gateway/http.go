package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/billrun/pkg/billing"
)

// HTTPConfig configures the HTTP payment provider client
type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// HTTPProvider charges invoices through a payment provider's REST API
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ billing.PaymentProvider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider client. A nil client gets a traced
// transport and config.Timeout as its request timeout.
func NewHTTPProvider(config HTTPConfig, client *http.Client) *HTTPProvider {
	if client == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(config.URL, "/"),
		apiKey:  config.APIKey,
		client:  client,
	}
}

type chargeRequest struct {
	InvoiceID  int64  `json:"invoice_id"`
	CustomerID int64  `json:"customer_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type chargeResponse struct {
	Charged *bool `json:"charged"`
}

// Charge posts the invoice to /v1/charges
func (p *HTTPProvider) Charge(ctx context.Context, inv billing.Invoice) (bool, error) {
	body, err := json.Marshal(chargeRequest{
		InvoiceID:  inv.ID,
		CustomerID: inv.CustomerID,
		Amount:     inv.Amount.Value.StringFixed(2),
		Currency:   string(inv.Amount.Currency),
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	accepted := resp.StatusCode >= 200 && resp.StatusCode <= 299

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		if accepted {
			// the provider may already have taken the money
			return false, fmt.Errorf("%w: failed to read body: %v", ErrMalformedResponse, err)
		}
		return false, fmt.Errorf("failed to read charge response: %w", err)
	}

	if !accepted {
		return false, decodeProviderError(resp.StatusCode, payload)
	}

	var out chargeResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Charged == nil {
		return false, fmt.Errorf("%w: missing charged field", ErrMalformedResponse)
	}
	return *out.Charged, nil
}

func decodeProviderError(status int, payload []byte) error {
	perr := &ProviderError{}
	if err := json.Unmarshal(payload, perr); err != nil || perr.Message == "" {
		perr.Message = strings.TrimSpace(string(payload))
		if perr.Message == "" {
			perr.Message = http.StatusText(status)
		}
	}
	perr.StatusCode = status
	return perr
}
