package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(storeUpdatesTotal, storeRetriesTotal, storeUpdateSeconds)
}

var (
	storeUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_updates_total",
			Help: "Ledger document updates by operation and result (ok, rejected, failed).",
		},
		[]string{"op", "result"},
	)

	storeRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_retries_total",
			Help: "Retries caused by lock or persistence contention.",
		},
		[]string{"op"},
	)

	storeUpdateSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_update_seconds",
			Help:    "Time spent inside the store critical section.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)
)

func ObserveStoreUpdate(op, result string, seconds float64) {
	storeUpdatesTotal.WithLabelValues(norm(op), result).Inc()
	storeUpdateSeconds.WithLabelValues(norm(op)).Observe(seconds)
}

func IncStoreRetry(op string) {
	storeRetriesTotal.WithLabelValues(norm(op)).Inc()
}
