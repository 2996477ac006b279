package webhook

import (
	"context"

	"github.com/lumora-app/billing-service/internal/domain/billing"
)

// Processor defines the interface for processing provider webhooks.
// Implementations can handle webhooks synchronously or asynchronously;
// either way the HTTP receiver acknowledges once the webhook is accepted.
type Processor interface {
	ProcessOrderWebhook(ctx context.Context, webhook billing.OrderWebhook) error
}
