package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(adminCommandTotal, adminAPIRequestsTotal)
}

var adminCommandTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_command_total",
		Help: "Tracks attempts to use admin commands.",
	},
	[]string{"command", "status"}, // status: 'authorized', 'unauthorized'
)

var adminAPIRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_api_requests_total",
		Help: "Admin HTTP API requests by route and status code class.",
	},
	[]string{"route", "code"},
)

func IncAdminCommand(command, status string) {
	adminCommandTotal.WithLabelValues(norm(command), norm(status)).Inc()
}

func IncAdminAPIRequest(route, code string) {
	adminAPIRequestsTotal.WithLabelValues(route, code).Inc()
}
