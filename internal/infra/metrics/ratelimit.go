package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(rateLimitDecisionsTotal, adminQuotaDecisionsTotal, accessDecisionsTotal)
}

var (
	rateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Sliding window decisions by action and result.",
		},
		[]string{"action", "result"},
	)

	adminQuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_quota_decisions_total",
			Help: "Daily admin quota decisions by action and result.",
		},
		[]string{"action", "result"},
	)

	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Access policy outcomes by action.",
		},
		[]string{"action", "outcome"},
	)
)

func ObserveRateLimit(action string, allowed bool) {
	rateLimitDecisionsTotal.WithLabelValues(norm(action), result(allowed)).Inc()
}

func ObserveAdminQuota(action string, allowed bool) {
	adminQuotaDecisionsTotal.WithLabelValues(norm(action), result(allowed)).Inc()
}

func ObserveAccess(action, outcome string) {
	accessDecisionsTotal.WithLabelValues(norm(action), norm(outcome)).Inc()
}
