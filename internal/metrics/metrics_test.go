package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePublish(3, 1)
	m.ObserveBooking(BookingSuccess, 0.01)
	m.ObserveBooking(BookingUnavailable, 0.02)
	m.ObserveBooking(BookingUnavailable, 0.02)
	m.ObserveTransition("pending", "confirmed", "ok")
	m.ObserveNotification("NewAppointment", "published")
	m.ObserveNotificationDropped("AppointmentUpdate")
	m.ObserveReconciled(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.slotsPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slotsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues(BookingSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues(BookingUnavailable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "confirmed", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifyDropped.WithLabelValues("AppointmentUpdate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.slotsReconciled))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObservePublish(1, 1)
	m.ObserveBooking(BookingError, 0.1)
	m.ObserveTransition("pending", "cancelled", "ok")
	m.ObserveNotification("NewAppointment", "failed")
	m.ObserveNotificationDropped("NewAppointment")
	m.ObserveReconciled(1)
}
