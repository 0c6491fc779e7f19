package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics. Collectors are created unregistered
// so tests can construct a Metrics without touching the default registry.
type Metrics struct {
	ReservationsTotal  *prometheus.CounterVec
	ReservationLatency prometheus.Histogram

	EventsPublished *prometheus.CounterVec
	EventsFailed    prometheus.Counter

	DistanceLookups *prometheus.CounterVec
}

// New creates the metric set under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		ReservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome",
		}, []string{"outcome"}),
		ReservationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_duration_seconds",
			Help:      "Time spent reserving capacity and persisting the emergency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Broadcast events published by topic",
		}, []string{"topic"}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Broadcast events that could not be published",
		}),
		DistanceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_lookups_total",
			Help:      "Distance provider lookups by outcome",
		}, []string{"outcome"}),
	}
}

// MustRegister attaches all collectors to the given registerer.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ReservationsTotal,
		m.ReservationLatency,
		m.EventsPublished,
		m.EventsFailed,
		m.DistanceLookups,
	)
}
