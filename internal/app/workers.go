package app

import (
	"context"

	"github.com/lumora-app/billing-service/config"
	"github.com/lumora-app/billing-service/internal/controller/message"
	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/external/kafka"
	"github.com/lumora-app/billing-service/internal/messaging"
	"github.com/lumora-app/billing-service/pkg/logger"
)

// StartWorkers starts the Kafka consumer that drains the webhook topic
// into the reconciler. Runs in background goroutines and stops when ctx
// is cancelled. Unprocessable messages go to the DLQ topic after retries
// so the consumer group never wedges on a poison message.
func StartWorkers(
	ctx context.Context,
	l *logger.Logger,
	cfg config.Config,
	reconciler *billing.ReconcilerService,
) {
	controller := message.NewOrderMessageController(l, reconciler, cfg.KafkaWebhooksTopic, cfg.KafkaWebhooksConsumerGroup)
	dlq := kafka.NewDLQPublisher(l, cfg.KafkaBrokers, cfg.KafkaWebhooksDLQTopic)

	handler := messaging.WithDLQ(
		messaging.WithRetry(controller.HandleMessage, messaging.DefaultRetryConfig()),
		dlq,
	)

	consumer := kafka.NewConsumer(
		l,
		cfg.KafkaBrokers,
		cfg.KafkaWebhooksTopic,
		cfg.KafkaWebhooksConsumerGroup,
	)
	runner := messaging.NewRunner(l, []messaging.Worker{consumer}, handler)

	go func() {
		l.Info("Starting webhook consumer: topic=%s group=%s",
			cfg.KafkaWebhooksTopic, cfg.KafkaWebhooksConsumerGroup)
		if err := runner.Start(ctx); err != nil {
			l.Error("Webhook runner failed: error=%v", err)
		}
		if err := dlq.Close(); err != nil {
			l.Error("Failed to close DLQ publisher: error=%v", err)
		}
	}()
}
