package metrics

import (
	"telegram-subscription-billing/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(subscriptionsTotal)
}

var subscriptionsTotal = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "subscriptions_total",
		Help: "Current number of subscriptions by status.",
	},
	[]string{"status"},
)

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusPending,
		model.SubscriptionStatusActive,
		model.SubscriptionStatusCanceled,
		model.SubscriptionStatusExpired,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
