package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesCreated counts duels created by the matchmaking queue.
	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trial",
		Name:      "matches_created_total",
		Help:      "Duels created by matchmaking.",
	})

	// Transitions counts committed phase transitions by destination phase.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trial",
		Name:      "phase_transitions_total",
		Help:      "Committed phase transitions.",
	}, []string{"to_phase"})

	// ForcedTransitions counts sweeper-forced transitions by kind.
	ForcedTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trial",
		Name:      "forced_transitions_total",
		Help:      "Transitions applied by the timeout sweeper.",
	}, []string{"kind"})

	// GenerationFailures counts question generator failures.
	GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trial",
		Name:      "generation_failures_total",
		Help:      "Question generation attempts that failed validation or transport.",
	})

	// SweepDuration observes full sweep cycle latency.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trial",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full timeout sweep.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Forced transition kinds.
const (
	ForcedTopicDeadline = "topic_deadline"
	ForcedRoundDeadline = "round_deadline"
	ForcedFinishedGC    = "finished_gc"
)
