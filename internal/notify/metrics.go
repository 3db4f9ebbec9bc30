package notify

import "github.com/prometheus/client_golang/prometheus"

var pushSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "api_push_notifications_total",
		Help: "Web-push deliveries by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(pushSentTotal)
}
