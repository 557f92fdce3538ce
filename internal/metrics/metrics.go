package metrics

import "github.com/prometheus/client_golang/prometheus"

// Booking outcomes.
const (
	BookingSuccess     = "success"
	BookingUnavailable = "unavailable"
	BookingNotFound    = "not_found"
	BookingError       = "error"
)

// Metrics exposes counters/histograms for the scheduling flows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	slotsPublished  prometheus.Counter
	slotsRejected   prometheus.Counter
	bookingsTotal   *prometheus.CounterVec
	bookingLatency  prometheus.Histogram
	transitions     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	notifyDropped   *prometheus.CounterVec
	slotsReconciled prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		slotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "slots",
			Name:      "published_total",
			Help:      "Slots accepted by publish calls",
		}),
		slotsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "slots",
			Name:      "rejected_total",
			Help:      "Instants refused by publish calls",
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "bookings",
			Name:      "total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "bookings",
			Name:      "latency_seconds",
			Help:      "Latency of booking attempts",
			Buckets:   prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Lifecycle transition attempts",
		}, []string{"from", "to", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Notification publish attempts by event type and result",
		}, []string{"event_type", "result"}),
		notifyDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "notifications",
			Name:      "dropped_total",
			Help:      "Notifications dropped because the buffer was full",
		}, []string{"event_type"}),
		slotsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "slots",
			Name:      "reconciled_total",
			Help:      "Booked slots released because no live appointment held them",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.slotsPublished,
		m.slotsRejected,
		m.bookingsTotal,
		m.bookingLatency,
		m.transitions,
		m.notifications,
		m.notifyDropped,
		m.slotsReconciled,
	)
	return m
}

func (m *Metrics) ObservePublish(accepted, rejected int) {
	if m == nil {
		return
	}
	m.slotsPublished.Add(float64(accepted))
	m.slotsRejected.Add(float64(rejected))
}

func (m *Metrics) ObserveBooking(result string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *Metrics) ObserveTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, result).Inc()
}

func (m *Metrics) ObserveNotification(eventType, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) ObserveNotificationDropped(eventType string) {
	if m == nil {
		return
	}
	m.notifyDropped.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveReconciled(n int) {
	if m == nil {
		return
	}
	m.slotsReconciled.Add(float64(n))
}
