package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhooksReceivedTotal,
		webhooksDeadLetteredTotal,
	)
}

var (
	webhooksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Webhook deliveries by provider and outcome (ok/bad_request/unauthorized/failed).",
		},
		[]string{"provider", "outcome"},
	)

	webhooksDeadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_dead_lettered_total",
			Help: "Webhook deliveries written to the dead-letter store, by provider and error type.",
		},
		[]string{"provider", "error_type"},
	)
)

func IncWebhook(provider, outcome string) {
	webhooksReceivedTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func IncWebhookDeadLettered(provider, errorType string) {
	webhooksDeadLetteredTotal.WithLabelValues(norm(provider), norm(errorType)).Inc()
}
