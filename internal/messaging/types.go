package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lumora-app/billing-service/pkg/correlation"

	"github.com/google/uuid"
)

// TypeOrderWebhook is the envelope type for provider webhook notifications.
const TypeOrderWebhook = "order.webhook"

// Envelope wraps a message with metadata for tracing and routing. Key is
// the partitioning key, so all messages for one order land on the same
// partition and are handled in publish order.
type Envelope struct {
	EventID       string          `json:"event_id"`
	Key           string          `json:"key"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewEnvelope creates an envelope with a generated event ID, carrying the
// correlation ID from ctx when one is set.
func NewEnvelope(ctx context.Context, key, msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		EventID:       uuid.New().String(),
		Key:           key,
		Type:          msgType,
		CorrelationID: correlation.FromContext(ctx),
		Payload:       data,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Publisher sends messages to a message broker.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) error
	Close() error
}

// MessageHandler processes a single message.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Worker consumes messages from a message broker.
type Worker interface {
	Start(ctx context.Context, handler MessageHandler) error
	Close() error
}
