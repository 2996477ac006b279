// Package crestpay implements the gateway port against the Crestpay HTTP API.
package crestpay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/domain/gateway"
)

// DefaultBaseURL is the documented Crestpay sandbox endpoint, used when no
// base URL is configured.
const DefaultBaseURL = "https://sandbox.crestpay.io"

const apiKeyHeader = "X-Api-Key"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a Crestpay client. An empty baseURL falls back to the sandbox;
// the API key is validated per call so a misconfigured deployment fails
// with an operator-actionable error instead of an opaque 401.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
	}
}

type orderResp struct {
	OrderID    string         `json:"order_id"`
	Status     string         `json:"status"`
	Amount     *float64       `json:"amount"`
	Currency   string         `json:"currency"`
	CustomInfo map[string]any `json:"custom_info"`
	Error      *errorResp     `json:"error,omitempty"`
}

type errorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FetchOrder performs a single authenticated lookup of one order. No
// retries: repeated polling has rate-limit cost the gateway controls, so
// retrying is the caller's decision.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (gateway.Order, error) {
	if orderID == "" {
		return gateway.Order{}, fmt.Errorf("%w: empty order id", billing.ErrInvalidRequest)
	}
	if c.apiKey == "" {
		return gateway.Order{}, gateway.ErrMisconfigured
	}

	reqURL := c.baseURL + "/v1/orders/" + url.PathEscape(orderID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return gateway.Order{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set(apiKeyHeader, c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Timeouts and transport failures are gateway errors, not hangs.
		return gateway.Order{}, &gateway.Error{Message: fmt.Sprintf("gateway unreachable: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)

	var out orderResp
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode/100 != 2 {
		gwErr := &gateway.Error{
			Message:    "order lookup failed",
			HTTPStatus: resp.StatusCode,
		}
		if decodeErr == nil && out.Error != nil {
			gwErr.Code = out.Error.Code
			if out.Error.Message != "" {
				gwErr.Message = out.Error.Message
			}
		}
		return gateway.Order{}, gwErr
	}

	if decodeErr != nil {
		return gateway.Order{}, &gateway.Error{
			Message:    "malformed gateway response",
			HTTPStatus: resp.StatusCode,
		}
	}
	if out.Error != nil {
		return gateway.Order{}, &gateway.Error{
			Code:       out.Error.Code,
			Message:    out.Error.Message,
			HTTPStatus: resp.StatusCode,
		}
	}

	return gateway.Order{
		OrderID:    out.OrderID,
		RawStatus:  out.Status,
		Amount:     out.Amount,
		Currency:   out.Currency,
		CustomInfo: out.CustomInfo,
	}, nil
}
