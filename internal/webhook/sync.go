package webhook

import (
	"context"

	"github.com/lumora-app/billing-service/internal/domain/billing"
)

// SyncProcessor reconciles webhooks in the request path by calling the
// service directly.
type SyncProcessor struct {
	reconciler *billing.ReconcilerService
}

func NewSyncProcessor(reconciler *billing.ReconcilerService) *SyncProcessor {
	return &SyncProcessor{reconciler: reconciler}
}

func (p *SyncProcessor) ProcessOrderWebhook(ctx context.Context, webhook billing.OrderWebhook) error {
	return p.reconciler.ProcessOrderWebhook(ctx, webhook)
}
