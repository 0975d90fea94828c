package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Guesses counts processed guesses, labeled by correctness.
	Guesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songclash_guesses_total",
		Help: "Number of guesses processed, by outcome.",
	}, []string{"correct"})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songclash_sessions_created_total",
		Help: "Number of game sessions created.",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songclash_sessions_completed_total",
		Help: "Number of game sessions that reached COMPLETED.",
	})
)
