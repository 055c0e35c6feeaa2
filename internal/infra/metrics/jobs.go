package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		renewalsChargedTotal,
		renewalsFailedTotal,
		renewalsManagedTotal,
		subscriptionsExpiredTotal,
		expiryFailuresTotal,
	)
}

var (
	renewalsChargedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renewals_charged_total",
		Help: "Subscriptions successfully charged by the renewal job.",
	})
	renewalsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renewals_failed_total",
		Help: "Renewal charges that failed (per-subscription, batch continued).",
	})
	renewalsManagedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renewals_managed_total",
		Help: "Subscriptions left to platform-managed renewal in a run.",
	})
	subscriptionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_expired_total",
		Help: "Subscriptions flipped to expired by the expiry job.",
	})
	expiryFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscription_expiry_failures_total",
		Help: "Rows the expiry job failed to update (batch continued).",
	})
)

func ObserveRenewalRun(charged, failed, managed int) {
	renewalsChargedTotal.Add(float64(charged))
	renewalsFailedTotal.Add(float64(failed))
	renewalsManagedTotal.Add(float64(managed))
}

func ObserveExpiryRun(expired, failed int) {
	subscriptionsExpiredTotal.Add(float64(expired))
	expiryFailuresTotal.Add(float64(failed))
}
