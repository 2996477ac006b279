package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/messaging"
	"github.com/lumora-app/billing-service/pkg/correlation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	last messaging.Envelope
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, env messaging.Envelope) error {
	p.last = env
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func TestAsyncProcessor_ProcessOrderWebhook(t *testing.T) {
	t.Run("publishes an envelope keyed by order id", func(t *testing.T) {
		publisher := &fakePublisher{}
		processor := NewAsyncProcessor(publisher)

		ctx := correlation.WithID(context.Background(), "corr-1")
		wh := billing.OrderWebhook{
			EventID: "evt-1",
			OrderID: "order-1",
			Status:  "completed",
		}

		err := processor.ProcessOrderWebhook(ctx, wh)

		require.NoError(t, err)
		assert.Equal(t, "order-1", publisher.last.Key)
		assert.Equal(t, messaging.TypeOrderWebhook, publisher.last.Type)
		assert.Equal(t, "corr-1", publisher.last.CorrelationID)
		assert.NotEmpty(t, publisher.last.EventID)

		var payload billing.OrderWebhook
		require.NoError(t, json.Unmarshal(publisher.last.Payload, &payload))
		assert.Equal(t, wh.EventID, payload.EventID)
		assert.Equal(t, wh.OrderID, payload.OrderID)
	})

	t.Run("propagates publish failures", func(t *testing.T) {
		expectedErr := errors.New("broker unavailable")
		publisher := &fakePublisher{err: expectedErr}
		processor := NewAsyncProcessor(publisher)

		err := processor.ProcessOrderWebhook(context.Background(), billing.OrderWebhook{OrderID: "order-1"})

		assert.ErrorIs(t, err, expectedErr)
	})
}
