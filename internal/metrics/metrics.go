package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "knockout"

// Metrics holds the lifecycle counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	BracketsGenerated   prometheus.Counter
	RoundsCreated       prometheus.Counter
	MatchResults        *prometheus.CounterVec
	TournamentsFinished *prometheus.CounterVec
	Memberships         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BracketsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brackets_generated_total",
			Help:      "Number of brackets generated.",
		}),
		RoundsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_created_total",
			Help:      "Number of rounds created, including round one.",
		}),
		MatchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_results_total",
			Help:      "Match result submissions by outcome.",
		}, []string{"outcome"}),
		TournamentsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_finished_total",
			Help:      "Tournaments moved to FINISHED, by trigger.",
		}, []string{"trigger"}),
		Memberships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_changes_total",
			Help:      "Join and leave attempts by action and result.",
		}, []string{"action", "result"}),
	}

	if reg != nil {
		reg.MustRegister(m.BracketsGenerated, m.RoundsCreated, m.MatchResults, m.TournamentsFinished, m.Memberships)
	}
	return m
}

func (m *Metrics) BracketGenerated() {
	if m == nil {
		return
	}
	m.BracketsGenerated.Inc()
	m.RoundsCreated.Inc()
}

func (m *Metrics) RoundCreated() {
	if m == nil {
		return
	}
	m.RoundsCreated.Inc()
}

func (m *Metrics) MatchResult(outcome string) {
	if m == nil {
		return
	}
	m.MatchResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TournamentFinished(trigger string) {
	if m == nil {
		return
	}
	m.TournamentsFinished.WithLabelValues(trigger).Inc()
}

func (m *Metrics) Membership(action, result string) {
	if m == nil {
		return
	}
	m.Memberships.WithLabelValues(action, result).Inc()
}
