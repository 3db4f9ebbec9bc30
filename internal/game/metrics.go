package game

import "github.com/prometheus/client_golang/prometheus"

var (
	missionsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_missions_generated_total",
			Help: "Missions generated by archetype.",
		},
		[]string{"archetype"},
	)
	missionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "game_missions_completed_total",
		Help: "Missions completed.",
	})
	creditsPaid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "game_credits_paid_total",
		Help: "Credits paid out for completed missions.",
	})
	vehicleMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_vehicle_movements_total",
			Help: "Vehicle state changes by kind.",
		},
		[]string{"kind"},
	)
	dispatchDistance = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_dispatch_distance_meters",
		Help:    "Estimated road distance of dispatched vehicles.",
		Buckets: []float64{500, 1000, 2500, 5000, 10000, 25000, 50000},
	})
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_simulation_tick_duration_seconds",
		Help:    "Duration of a simulation tick.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(missionsGenerated, missionsCompleted, creditsPaid, vehicleMovements, dispatchDistance, tickDuration)
}
