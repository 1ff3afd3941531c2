package application

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	operations *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
}

// newServiceMetrics registers the service counters on reg. A nil reg gets a private
// registry so several services can coexist in tests.
func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &serviceMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defense_operations_total",
			Help: "Defense service operations by outcome",
		}, []string{"operation", "result"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defense_conflicts_total",
			Help: "Bookings rejected because of a person or venue conflict",
		}, []string{"operation"}),
	}
}

func (m *serviceMetrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = ErrorKind(err)
	}
	m.operations.WithLabelValues(operation, result).Inc()
	if errors.Is(err, ErrConflict) {
		m.conflicts.WithLabelValues(operation).Inc()
	}
}
