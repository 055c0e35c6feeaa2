package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		duplicateCallbacksTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by provider and status (initiated/succeeded/failed/canceled).",
		},
		[]string{"provider", "status"},
	)

	duplicateCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_duplicate_callbacks_total",
			Help: "Callbacks discarded by the terminal-state guard, per provider.",
		},
		[]string{"provider"},
	)
)

func IncPayment(provider, status string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func IncDuplicateCallback(provider string) {
	duplicateCallbacksTotal.WithLabelValues(norm(provider)).Inc()
}
