package api

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const AlertLoginFailureSpike AlertType = "login_failure_spike"

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
)

// authMetrics turns audit events into Prometheus counters and feeds login
// failures to the spike detector. Either half may be absent.
type authMetrics struct {
	events *prometheus.CounterVec
	spike  *failureSpike
}

func newAuthMetrics(reg prometheus.Registerer, alertFn AlertFunc) *authMetrics {
	m := &authMetrics{}
	if reg != nil {
		m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiongate",
			Subsystem: "backend",
			Name:      "auth_events_total",
			Help:      "Audited authentication events by type.",
		}, []string{"event"})
		reg.MustRegister(m.events)
	}
	if alertFn != nil {
		m.spike = newFailureSpike(defaultLoginFailureThreshold, defaultLoginFailureWindow, alertFn)
	}
	return m
}

func (m *authMetrics) observe(event AuditEvent) {
	if m == nil {
		return
	}
	if m.events != nil {
		m.events.WithLabelValues(string(event)).Inc()
	}
	if m.spike != nil && (event == AuditLoginFailure || event == AuditLoginRateLimited) {
		m.spike.hit()
	}
}

// failureSpike fires once when threshold failures land inside one window.
// It remembers the last threshold failure times in a ring; the window is
// exceeded when the oldest of them is still recent enough.
type failureSpike struct {
	mu sync.Mutex

	ring      []time.Time
	next      int
	filled    int
	threshold int
	window    time.Duration

	alertFn AlertFunc
	now     func() time.Time
}

func newFailureSpike(threshold int, window time.Duration, alertFn AlertFunc) *failureSpike {
	return &failureSpike{
		ring:      make([]time.Time, threshold),
		threshold: threshold,
		window:    window,
		alertFn:   alertFn,
		now:       time.Now,
	}
}

func (s *failureSpike) hit() {
	s.mu.Lock()
	now := s.now()
	s.ring[s.next] = now
	s.next = (s.next + 1) % s.threshold
	if s.filled < s.threshold {
		s.filled++
	}

	fire := false
	if s.filled == s.threshold {
		// With a full ring, next points at the oldest entry.
		fire = now.Sub(s.ring[s.next]) <= s.window
	}
	if fire {
		s.filled = 0
	}
	s.mu.Unlock()

	if fire {
		s.alertFn(AlertEvent{
			Type:      AlertLoginFailureSpike,
			Message:   "login failure rate exceeds threshold",
			Count:     s.threshold,
			Threshold: s.threshold,
			Timestamp: now,
		})
	}
}
