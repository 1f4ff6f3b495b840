package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usersRegisteredTotal,
		telegramCommandsReceivedTotal,
		premiumUsers,
		clonesTotal,
		broadcastMessagesTotal,
	)
}

var (
	usersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of new users registered.",
		},
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming messages and commands from users.",
		},
		[]string{"command"},
	)

	premiumUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "premium_users",
			Help: "Users with a running premium entitlement at the last sweep.",
		},
	)

	clonesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_clones_total",
			Help: "Sticker pack clone attempts by result.",
		},
		[]string{"result"},
	)

	broadcastMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Broadcast deliveries by status.",
		},
		[]string{"status"},
	)
)

func IncUsersRegistered() {
	usersRegisteredTotal.Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func SetPremiumUsers(n int) {
	premiumUsers.Set(float64(n))
}

func IncClone(result string) {
	clonesTotal.WithLabelValues(norm(result)).Inc()
}

func IncBroadcast(status string) {
	broadcastMessagesTotal.WithLabelValues(norm(status)).Inc()
}
