package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurukulapp/heavenly-trial/internal/question"
	"github.com/gurukulapp/heavenly-trial/internal/trial"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	picker := question.NewTopicPicker(nil, func(int) int { return 0 })
	engine := trial.NewEngine(trial.NewMemoryStore(), nil, picker, trial.DefaultRules(), zerolog.Nop(), trial.EngineOptions{})
	return NewHandler(engine, nil, nil, nil, zerolog.Nop())
}

func roundOneMatch() *trial.Match {
	entered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &trial.Match{
		ID:        "m1",
		PlayerIDs: [2]string{"p0", "p1"},
		Players: [2]trial.Player{
			{ID: "p0", DisplayName: "Asha", Topic: "Space", TopicSubmitted: true, Score: 10, Answers: map[int]string{0: "A", 1: "B"}},
			{ID: "p1", DisplayName: "Bram", Topic: "Oceans", TopicSubmitted: true, Answers: map[int]string{1: "C"}},
		},
		Phase: trial.PhaseRound1,
		Round: 1,
		Questions: []question.Question{
			{Prompt: "q0", Options: []string{"A", "B"}, Answer: "A"},
			{Prompt: "q1", Options: []string{"A", "B", "C"}, Answer: "B"},
		},
		CurrentQuestionIndex: 1,
		PhaseEnteredAt:       map[trial.Phase]time.Time{trial.PhaseRound1: entered},
	}
}

func TestSnapshotNeverExposesAnswers(t *testing.T) {
	h := testHandler(t)
	snap := h.snapshot(roundOneMatch())

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"answer"`)

	require.Len(t, snap.Questions, 2)
	assert.Equal(t, 0, snap.Questions[0].Index)
	assert.Equal(t, []string{"A", "B"}, snap.Questions[0].Options)
}

func TestSnapshotReportsAnsweredIndicesOnly(t *testing.T) {
	h := testHandler(t)
	snap := h.snapshot(roundOneMatch())

	require.Len(t, snap.Players, 2)
	assert.Equal(t, []int{0, 1}, snap.Players[0].Answered)
	assert.Equal(t, []int{1}, snap.Players[1].Answered)
	assert.Equal(t, 10, snap.Players[0].Score)
	// The chosen options themselves stay server-side.
	raw, _ := json.Marshal(snap.Players)
	assert.NotContains(t, string(raw), `"A"`)
}

func TestSnapshotCarriesPhaseDeadline(t *testing.T) {
	h := testHandler(t)
	snap := h.snapshot(roundOneMatch())

	require.NotEmpty(t, snap.PhaseDeadline)
	deadline, err := time.Parse(time.RFC3339, snap.PhaseDeadline)
	require.NoError(t, err)
	// Round deadline is entry time plus the round duration.
	assert.Equal(t, time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC), deadline.UTC())
}

func TestSnapshotOmitsDeadlineWhenFinished(t *testing.T) {
	h := testHandler(t)
	m := roundOneMatch()
	m.Phase = trial.PhaseFinished
	m.PhaseEnteredAt[trial.PhaseFinished] = time.Now()

	snap := h.snapshot(m)
	assert.Empty(t, snap.PhaseDeadline)
}
