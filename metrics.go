package hotqueue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records queue activity in Prometheus collectors, labelled by
// queue name. A nil *Metrics records nothing.
type Metrics struct {
	Put      *prometheus.CounterVec
	Received *prometheus.CounterVec
	Empty    *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	GetWait  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Put: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotqueue_messages_put_total",
			Help: "Total number of messages pushed onto a queue",
		}, []string{"queue"}),
		Received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotqueue_messages_received_total",
			Help: "Total number of messages popped from a queue",
		}, []string{"queue"}),
		Empty: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotqueue_get_empty_total",
			Help: "Total number of reads that found no message",
		}, []string{"queue"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotqueue_errors_total",
			Help: "Total number of failed queue operations",
		}, []string{"queue", "op"}),
		GetWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotqueue_get_wait_seconds",
			Help:    "Time spent waiting in Get",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"queue"}),
	}
}

func (m *Metrics) observePut(queue string, n int) {
	if m == nil {
		return
	}
	m.Put.WithLabelValues(queue).Add(float64(n))
}

func (m *Metrics) observeGet(queue string, ok bool, wait time.Duration) {
	if m == nil {
		return
	}
	m.GetWait.WithLabelValues(queue).Observe(wait.Seconds())
	if ok {
		m.Received.WithLabelValues(queue).Inc()
	} else {
		m.Empty.WithLabelValues(queue).Inc()
	}
}

func (m *Metrics) observeError(queue, op string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(queue, op).Inc()
}
