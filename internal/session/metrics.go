package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the ingest pipeline. All
// methods tolerate a nil receiver so wiring stays optional in tests.
type Metrics struct {
	messagesIngested *prometheus.CounterVec
	pollsTotal       *prometheus.CounterVec
	pollErrors       *prometheus.CounterVec
	likesAccepted    prometheus.Counter
	viewMilestones   prometheus.Counter
	sessionsStarted  prometheus.Counter
	sessionConnected prometheus.Gauge
	detectChecks     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "messages_ingested_total",
			Help:      "Chat messages accepted after de-duplication",
		}, []string{"kind"}),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "polls_total",
			Help:      "Chat poll round trips performed",
		}, []string{"provider"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "poll_errors_total",
			Help:      "Chat polls that returned an error",
		}, []string{"provider"}),
		likesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "likes_accepted_total",
			Help:      "Likes accepted above the session high-water mark",
		}),
		viewMilestones: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "view_milestones_total",
			Help:      "View milestone events emitted",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "sessions_started_total",
			Help:      "Chat sessions successfully started",
		}),
		sessionConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ytev",
			Name:      "session_connected",
			Help:      "1 while a chat session is connected",
		}),
		detectChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "detect_checks_total",
			Help:      "Live detection checks by outcome",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.messagesIngested,
			m.pollsTotal,
			m.pollErrors,
			m.likesAccepted,
			m.viewMilestones,
			m.sessionsStarted,
			m.sessionConnected,
			m.detectChecks,
		)
	}
	return m
}

func (m *Metrics) IncMessage(kind string) {
	if m == nil {
		return
	}
	m.messagesIngested.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncPoll(provider string, failed bool) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(provider).Inc()
	if failed {
		m.pollErrors.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) AddLikes(n int64) {
	if m == nil {
		return
	}
	m.likesAccepted.Add(float64(n))
}

func (m *Metrics) IncMilestone() {
	if m == nil {
		return
	}
	m.viewMilestones.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.sessionConnected.Set(1)
}

func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.sessionConnected.Set(0)
}

func (m *Metrics) IncDetect(outcome string) {
	if m == nil {
		return
	}
	m.detectChecks.WithLabelValues(outcome).Inc()
}
