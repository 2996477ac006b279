package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "webhooks",
			Name:      "received_total",
			Help:      "Order webhooks received, by outcome (accepted, duplicate, unactionable, malformed, failed)",
		},
		[]string{"outcome"},
	)

	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reconciler",
			Name:      "reconciliations_total",
			Help:      "Confirm-order reconciliations, by resolved status",
		},
		[]string{"status"},
	)

	TransitionsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reconciler",
			Name:      "transitions_skipped_total",
			Help:      "Status writes rejected by the monotonic transition rule",
		},
	)

	TrustGaps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reconciler",
			Name:      "trust_gaps_total",
			Help:      "Webhook payloads whose status could not be verified against the gateway",
		},
	)
)

func init() {
	Registry.MustRegister(WebhooksReceived, Reconciliations, TransitionsSkipped, TrustGaps)
}
