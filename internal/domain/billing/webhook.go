package billing

import (
	"encoding/json"
	"time"
)

// OrderWebhook is the provider-pushed notification payload. Its contents
// are untrusted: the status it self-reports is only a trigger to re-query
// the gateway, never a billing decision on its own.
type OrderWebhook struct {
	EventID    string          `json:"event_id"`
	OrderID    string          `json:"order_id"`
	Status     string          `json:"status"`
	Amount     *float64        `json:"amount,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	CustomInfo map[string]any  `json:"custom_info,omitempty"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// WebhookEvent is a durably recorded webhook receipt. The unique
// (order_id, provider_event_id) pair absorbs at-least-once redelivery.
type WebhookEvent struct {
	EventID         string          `json:"event_id"`
	OrderID         string          `json:"order_id"`
	ProviderEventID string          `json:"provider_event_id"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type EventQuery struct {
	OrderIDs []string
}

type EventQueryBuilder struct {
	query *EventQuery
}

func NewEventQueryBuilder() *EventQueryBuilder {
	return &EventQueryBuilder{query: &EventQuery{}}
}

func (b *EventQueryBuilder) WithOrderIDs(orderIDs ...string) *EventQueryBuilder {
	b.query.OrderIDs = orderIDs
	return b
}

func (b *EventQueryBuilder) Build() *EventQuery {
	return b.query
}
