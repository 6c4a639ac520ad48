package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wordrush",
			Subsystem: "network",
			Name:      "sessions_active",
			Help:      "Connected websocket sessions.",
		},
	)
	selections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wordrush",
			Subsystem: "game",
			Name:      "selections_total",
			Help:      "Word selections by outcome.",
		},
		[]string{"outcome"},
	)
	roundsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wordrush",
			Subsystem: "game",
			Name:      "rounds_completed_total",
			Help:      "Rounds completed.",
		},
	)
	oracleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wordrush",
			Subsystem: "oracle",
			Name:      "lookup_duration_seconds",
			Help:      "Nearest-neighbour lookup duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	oracleErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wordrush",
			Subsystem: "oracle",
			Name:      "errors_total",
			Help:      "Failed or timed out nearest-neighbour lookups.",
		},
	)
	broadcastDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wordrush",
			Subsystem: "network",
			Name:      "broadcast_deliveries_total",
			Help:      "Per-session broadcast deliveries by result.",
		},
		[]string{"result"},
	)
	queueDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wordrush",
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Items dropped because a queue was full.",
		},
		[]string{"queue"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			sessionsActive,
			selections,
			roundsCompleted,
			oracleDuration,
			oracleErrors,
			broadcastDeliveries,
			queueDropped,
		)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func SessionOpened() {
	RegisterMetrics()
	sessionsActive.Inc()
}

func SessionClosed() {
	RegisterMetrics()
	sessionsActive.Dec()
}

func RecordSelection(outcome string) {
	RegisterMetrics()
	selections.WithLabelValues(outcome).Inc()
}

func RecordRoundCompleted() {
	RegisterMetrics()
	roundsCompleted.Inc()
}

func RecordOracleLookup(duration time.Duration, failed bool) {
	RegisterMetrics()
	oracleDuration.Observe(duration.Seconds())
	if failed {
		oracleErrors.Inc()
	}
}

func RecordBroadcast(delivered, dropped int) {
	RegisterMetrics()
	broadcastDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	broadcastDeliveries.WithLabelValues("dropped").Add(float64(dropped))
}

func RecordQueueDrop(queue string) {
	RegisterMetrics()
	queueDropped.WithLabelValues(queue).Inc()
}
