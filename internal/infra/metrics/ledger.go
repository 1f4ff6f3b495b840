package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(codesGeneratedTotal, redemptionsTotal, templatesTotal)
}

var (
	codesGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redeem_codes_generated_total",
			Help: "Redeem codes created, by kind (single, multi, unlimited, bulk, template).",
		},
		[]string{"kind"},
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Redemption attempts by result.",
		},
		[]string{"result"},
	)

	templatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "code_templates_total",
			Help: "Template lifecycle events (created, deleted, instantiated).",
		},
		[]string{"event"},
	)
)

func IncCodesGenerated(kind string, n int) {
	codesGeneratedTotal.WithLabelValues(norm(kind)).Add(float64(n))
}

func IncRedemption(result string) {
	redemptionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncTemplate(event string) {
	templatesTotal.WithLabelValues(norm(event)).Inc()
}
