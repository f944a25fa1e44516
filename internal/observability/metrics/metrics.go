package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medagenda/clinic-scheduling/internal/scheduling"
)

// SchedulingMetrics exposes counters for the booking and lifecycle flows. It
// implements the scheduling service's Metrics interface.
type SchedulingMetrics struct {
	bookingTotal   *prometheus.CounterVec
	cancelledTotal prometheus.Counter
	reconcileTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medagenda",
			Subsystem: "scheduling",
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"result"}),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medagenda",
			Subsystem: "scheduling",
			Name:      "appointments_cancelled_total",
			Help:      "Appointments cancelled by patients",
		}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medagenda",
			Subsystem: "scheduling",
			Name:      "reconciled_total",
			Help:      "Past appointments moved to a terminal state",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.cancelledTotal, m.reconcileTotal)
	return m
}

func (m *SchedulingMetrics) BookingAttempt(result string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) AppointmentCancelled() {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
}

func (m *SchedulingMetrics) Reconciled(status scheduling.AppointmentStatus, n int) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(string(status)).Add(float64(n))
}
