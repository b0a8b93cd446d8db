package trial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseOrdering(t *testing.T) {
	assert.True(t, PhaseTopicSelection.Before(PhaseRound1))
	assert.True(t, PhaseRound1.Before(PhaseRound2))
	assert.True(t, PhaseRound2.Before(PhaseFinished))
	assert.False(t, PhaseFinished.Before(PhaseTopicSelection))
}

func TestCanTransitionIsMonotonic(t *testing.T) {
	assert.True(t, CanTransition(PhaseTopicSelection, PhaseRound1))
	assert.True(t, CanTransition(PhaseRound1, PhaseRound2))
	assert.True(t, CanTransition(PhaseRound2, PhaseFinished))

	// No skips, no regressions.
	assert.False(t, CanTransition(PhaseTopicSelection, PhaseRound2))
	assert.False(t, CanTransition(PhaseRound1, PhaseTopicSelection))
	assert.False(t, CanTransition(PhaseFinished, PhaseRound1))
	assert.False(t, CanTransition(PhaseRound1, PhaseRound1))
}

func TestPhaseHelpers(t *testing.T) {
	assert.True(t, PhaseRound1.IsRound())
	assert.True(t, PhaseRound2.IsRound())
	assert.False(t, PhaseTopicSelection.IsRound())
	assert.False(t, PhaseFinished.IsRound())

	assert.True(t, PhaseRound1.Valid())
	assert.False(t, Phase("intermission").Valid())
}
