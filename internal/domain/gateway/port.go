// Package gateway defines the port to the external payment gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

//go:generate mockgen -source port.go -destination mock_port.go -package gateway

// Client reads order state from the payment gateway. The gateway is the
// single source of truth for order status; this client never mutates it.
type Client interface {
	// FetchOrder looks up the current state of one payment order.
	// Returns billing.ErrInvalidRequest semantics for an empty id (no
	// network call), ErrMisconfigured when the credential is absent, and
	// *Error for provider-side failures. No internal retries.
	FetchOrder(ctx context.Context, orderID string) (Order, error)
}

// Order is the provider's view of a payment order, untranslated.
// RawStatus and CustomInfo are provider-opaque until the domain
// normalizes them.
type Order struct {
	OrderID    string
	RawStatus  string
	Amount     *float64
	Currency   string
	CustomInfo map[string]any
}

// ErrMisconfigured means the gateway credential is absent. Retrying cannot
// succeed; an operator has to fix the deployment.
var ErrMisconfigured = errors.New("payment gateway credential is not configured")

// Error is a provider-reported or transport-level gateway failure.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int // provider HTTP status, 0 when unreachable
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error: %s", e.Message)
}
