package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/medagenda/clinic-scheduling/internal/scheduling"
)

func TestSchedulingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.BookingAttempt("success")
	m.BookingAttempt("success")
	m.BookingAttempt("conflict")
	m.AppointmentCancelled()
	m.Reconciled(scheduling.StatusCompleted, 7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.bookingTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingTotal.WithLabelValues("conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cancelledTotal))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.reconcileTotal.WithLabelValues("COMPLETED")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.BookingAttempt("success")
	m.AppointmentCancelled()
	m.Reconciled(scheduling.StatusExpired, 1)
}
