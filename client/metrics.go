package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	forcedLogouts prometheus.Counter
}

// NewMetrics creates the client collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiongate",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Backend calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sessiongate",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Backend call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessiongate",
			Subsystem: "client",
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because the backend answered 401.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.forcedLogouts)
	return m
}

func (m *Metrics) observe(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) forcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
}
