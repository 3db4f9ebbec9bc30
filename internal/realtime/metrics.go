package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	droppedChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_realtime_dropped_changes_total",
			Help: "Changes dropped because a subscriber could not keep up.",
		},
		[]string{"broker"},
	)

	websocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_realtime_websocket_connections",
			Help: "Currently open realtime websocket connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(droppedChangesTotal, websocketConnections)
}
