package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(wizardTransitionsTotal, wizardSessionsActive)
}

var (
	wizardTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Wizard steps by state and result (advance, reprompt, done, cancel, error).",
		},
		[]string{"state", "result"},
	)

	wizardSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_sessions_active",
			Help: "Open wizard sessions.",
		},
	)
)

func IncWizardTransition(state, result string) {
	wizardTransitionsTotal.WithLabelValues(norm(state), norm(result)).Inc()
}

func SetWizardSessions(n int) {
	wizardSessionsActive.Set(float64(n))
}
