// Package telemetry defines the Prometheus metrics published by the
// voting backend.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesAccepted counts committed vote submissions by comparison mode.
	VotesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voteapi",
		Name:      "votes_accepted_total",
		Help:      "Number of vote submissions accepted and committed.",
	}, []string{"mode"})

	// VotesRejected counts rejected submissions by rejection reason.
	VotesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voteapi",
		Name:      "votes_rejected_total",
		Help:      "Number of vote submissions rejected, by reason.",
	}, []string{"reason"})

	// EloMatchesRecorded counts applied ELO rating updates.
	EloMatchesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voteapi",
		Name:      "elo_matches_recorded_total",
		Help:      "Number of tournament matches applied to ELO ratings.",
	})

	// ResultsComputed counts results aggregations by comparison mode.
	ResultsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voteapi",
		Name:      "results_computed_total",
		Help:      "Number of results aggregations served, by comparison mode.",
	}, []string{"mode"})
)
