package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dispatcherMetrics struct {
	enqueued   prometheus.Counter
	dropped    *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	queueDepth prometheus.GaugeFunc
}

func newDispatcherMetrics(reg prometheus.Registerer, depth func() float64) *dispatcherMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &dispatcherMetrics{
		enqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notifications accepted onto the delivery queue",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications dropped before delivery",
		}, []string{"reason"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Notification deliveries by sink and outcome",
		}, []string{"sink", "result"}),
		queueDepth: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Notifications waiting for a worker",
		}, depth),
	}
}
