// Package message contains Kafka-facing controllers for deferred webhook
// reconciliation.
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/messaging"
	"github.com/lumora-app/billing-service/pkg/logger"
	"github.com/lumora-app/billing-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMessageController handles order webhook envelopes from Kafka.
type OrderMessageController struct {
	logger     *logger.Logger
	reconciler *billing.ReconcilerService
	topic      string
	group      string
}

// NewOrderMessageController creates a new order message controller. Topic
// and group are only used as metric labels.
func NewOrderMessageController(l *logger.Logger, r *billing.ReconcilerService, topic, group string) *OrderMessageController {
	return &OrderMessageController{
		logger:     l,
		reconciler: r,
		topic:      topic,
		group:      group,
	}
}

// HandleMessage processes a single order webhook message. Malformed
// envelopes and payloads are returned as errors so the DLQ middleware can
// capture them; they will never succeed on redelivery.
func (c *OrderMessageController) HandleMessage(ctx context.Context, key, value []byte) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		labels := prometheus.Labels{"topic": c.topic, "consumer_group": c.group, "status": outcome}
		metrics.KafkaMessagesProcessed.With(labels).Inc()
		metrics.KafkaProcessingDuration.With(labels).Observe(time.Since(start).Seconds())
	}()

	var env messaging.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		outcome = "malformed"
		c.logger.Error("Failed to unmarshal envelope: key=%s error=%v", string(key), err)
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	c.logger.Debug("Processing order message: event_id=%s key=%s type=%s",
		env.EventID, env.Key, env.Type)

	var webhook billing.OrderWebhook
	if err := json.Unmarshal(env.Payload, &webhook); err != nil {
		outcome = "malformed"
		c.logger.Error("Failed to unmarshal webhook payload: event_id=%s error=%v", env.EventID, err)
		return fmt.Errorf("unmarshal webhook: %w", err)
	}
	if len(webhook.Raw) == 0 {
		webhook.Raw = env.Payload
	}

	if err := c.reconciler.ProcessOrderWebhook(ctx, webhook); err != nil {
		outcome = "failed"
		c.logger.Error("Failed to process order webhook: event_id=%s order_id=%s error=%v",
			env.EventID, webhook.OrderID, err)
		return err
	}

	c.logger.Info("Order webhook processed: event_id=%s order_id=%s status=%s",
		env.EventID, webhook.OrderID, webhook.Status)

	return nil
}
