package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "poolsched"

const (
	DirectionIn  = "in"
	DirectionOut = "out"

	EdgeStart = "start"
	EdgeEnd   = "end"
)

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Count of reservations created by kind.",
		},
		[]string{"kind"},
	)

	reservationConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_conflicts_total",
			Help:      "Count of reservations rejected by an overlapping active reservation.",
		},
		[]string{"kind"},
	)

	reservationsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_cancelled_total",
			Help:      "Count of cancel operations by kind.",
		},
		[]string{"kind"},
	)

	reservationCheckins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_checkins_total",
			Help:      "Count of check-in and check-out operations.",
		},
		[]string{"kind", "direction"},
	)

	lockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring reservation key locks.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Count of lifecycle events handed to Kafka by outcome.",
		},
		[]string{"status"},
	)

	overdueReservations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_reservations",
			Help:      "Active reservations whose start or end passed without a check-in or check-out.",
		},
		[]string{"kind", "edge"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationsCreated,
			reservationConflicts,
			reservationsCancelled,
			reservationCheckins,
			lockWait,
			eventsPublished,
			overdueReservations,
		)
	})
}

func IncReservationCreated(kind string) {
	reservationsCreated.WithLabelValues(kind).Inc()
}

func IncReservationConflict(kind string) {
	reservationConflicts.WithLabelValues(kind).Inc()
}

func IncReservationCancelled(kind string) {
	reservationsCancelled.WithLabelValues(kind).Inc()
}

// IncCheckin counts a check-in or check-out.
func IncCheckin(kind, direction string) {
	reservationCheckins.WithLabelValues(kind, direction).Inc()
}

func ObserveLockWait(backend string, since time.Time) {
	lockWait.WithLabelValues(backend).Observe(time.Since(since).Seconds())
}

func IncEventPublished(status string) {
	eventsPublished.WithLabelValues(status).Inc()
}

// SetOverdue records the overdue count for EdgeStart or EdgeEnd.
func SetOverdue(kind, edge string, n int) {
	overdueReservations.WithLabelValues(kind, edge).Set(float64(n))
}
