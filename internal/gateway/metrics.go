package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts matchmaking outcomes and relay traffic. Registered on the
// registry passed by main; a nil registry keeps the counters unregistered,
// which tests rely on.
type Metrics struct {
	Matchmaking *prometheus.CounterVec
	Relayed     *prometheus.CounterVec
	Ended       prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Matchmaking: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_matchmaking_total",
			Help: "Quick-match requests by outcome.",
		}, []string{"result"}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_relay_messages_total",
			Help: "Messages relayed through session rooms, by event.",
		}, []string{"event"}),
		Ended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_sessions_ended_total",
			Help: "Sessions finalized by the score recorder.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Matchmaking, m.Relayed, m.Ended)
	}
	return m
}
