package webhook

import (
	"context"
	"fmt"

	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/messaging"
)

// AsyncProcessor defers reconciliation by publishing webhooks to Kafka.
// Envelopes are keyed by order ID so one order is always reconciled in
// arrival order by a single consumer.
type AsyncProcessor struct {
	publisher messaging.Publisher
}

func NewAsyncProcessor(publisher messaging.Publisher) *AsyncProcessor {
	return &AsyncProcessor{publisher: publisher}
}

func (p *AsyncProcessor) ProcessOrderWebhook(ctx context.Context, webhook billing.OrderWebhook) error {
	envelope, err := messaging.NewEnvelope(ctx, webhook.OrderID, messaging.TypeOrderWebhook, webhook)
	if err != nil {
		return fmt.Errorf("create envelope: %w", err)
	}
	return p.publisher.Publish(ctx, envelope)
}
