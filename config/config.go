package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"3000"`
	PgURL     string `env:"PG_URL" required:"true"`
	PgPoolMax int    `env:"PG_POOL_MAX" envDefault:"10"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Crestpay gateway. The API key is deliberately not required here: a
	// deployment without it still serves webhooks and reads, and the
	// confirm path reports the misconfiguration per request.
	CrestpayBaseURL           string        `env:"CRESTPAY_BASE_URL"`
	CrestpayAPIKey            string        `env:"CRESTPAY_API_KEY"`
	HTTPCrestpayClientTimeout time.Duration `env:"HTTP_CRESTPAY_CLIENT_TIMEOUT" envDefault:"20s"`

	// Optional OpenSearch audit sink. Leaving it unset disables the audit
	// trail endpoint.
	OpensearchUrls       []string `env:"OPENSEARCH_URLS" envSeparator:","`
	OpensearchIndexAudit string   `env:"OPENSEARCH_INDEX_AUDIT" envDefault:"billing-audit"`

	// Webhook processing mode: "sync" (direct) or "kafka" (async via Kafka)
	WebhookMode string `env:"WEBHOOK_MODE" envDefault:"sync"`

	// Kafka configuration
	KafkaBrokers               []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaWebhooksTopic         string   `env:"KAFKA_WEBHOOKS_TOPIC" envDefault:"billing.webhooks"`
	KafkaWebhooksDLQTopic      string   `env:"KAFKA_WEBHOOKS_DLQ_TOPIC" envDefault:"billing.webhooks.dlq"`
	KafkaWebhooksConsumerGroup string   `env:"KAFKA_WEBHOOKS_CONSUMER_GROUP" envDefault:"billing-service-webhooks"`
}

func New() (Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	return c, nil
}
