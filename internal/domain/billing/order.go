package billing

import (
	"slices"
	"time"
)

// DefaultCurrency is used when the gateway omits the currency.
const DefaultCurrency = "EUR"

// Order is the locally recorded view of one payment attempt. The gateway
// owns the order; this row only accumulates what has been observed.
type Order struct {
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status"`
	Amount    *float64  `json:"amount,omitempty"`
	Currency  string    `json:"currency"`
	Interval  *Interval `json:"interval,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusUnknown   Status = "unknown"
)

var AvailableStatuses = []Status{StatusPending, StatusCompleted, StatusDeclined, StatusExpired, StatusUnknown}

var terminalStatuses = []Status{StatusCompleted, StatusDeclined, StatusExpired}

// NormalizeStatus maps a raw gateway status string into the closed enum.
// Anything unrecognized becomes StatusUnknown; an unrecognized-but-successful
// gateway response must not block checkout.
func NormalizeStatus(raw string) Status {
	if slices.Contains(AvailableStatuses, Status(raw)) {
		return Status(raw)
	}
	return StatusUnknown
}

// NewStatus parses a status that is expected to be valid (e.g. read back
// from the database).
func NewStatus(raw string) (Status, error) {
	if slices.Contains(AvailableStatuses, Status(raw)) {
		return Status(raw), nil
	}
	return "", ErrInvalidStatus
}

// IsTerminal reports whether no further transition is valid from s.
func (s Status) IsTerminal() bool {
	return slices.Contains(terminalStatuses, s)
}

// CanBeUpdatedTo implements the monotonic transition rule: pending may move
// to a terminal state, unknown may move anywhere, terminal states never move.
// Webhook delivery and client polling are unordered, so the last
// gateway-confirmed status wins and can never be regressed.
func (s Status) CanBeUpdatedTo(newStatus Status) bool {
	if s == newStatus {
		return false
	}
	switch s {
	case StatusUnknown:
		return true
	case StatusPending:
		return slices.Contains(terminalStatuses, newStatus)
	default:
		return false
	}
}

// ReconciliationResult is the outcome of one reconciliation attempt.
// Status unknown plus absent interval stand in for every unresolved case.
type ReconciliationResult struct {
	Status   Status    `json:"status"`
	Interval *Interval `json:"interval,omitempty"`
	Amount   *float64  `json:"amount,omitempty"`
	Currency string    `json:"currency"`
}
