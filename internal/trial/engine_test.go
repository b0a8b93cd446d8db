package trial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurukulapp/heavenly-trial/internal/question"
)

// stubSource returns deterministic packs keyed by topic, or a configured
// failure.
type stubSource struct {
	mu    sync.Mutex
	fail  error
	calls []string
}

func (s *stubSource) Generate(_ context.Context, topic string, count int, _ string) ([]question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, topic)
	if s.fail != nil {
		return nil, s.fail
	}
	qs := make([]question.Question, count)
	for i := range qs {
		qs[i] = question.Question{
			Prompt:  fmt.Sprintf("%s question %d", topic, i),
			Options: []string{"A", "B", "C", "D"},
			Answer:  "A",
		}
	}
	return qs, nil
}

func (s *stubSource) topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingObserver struct {
	mu      sync.Mutex
	updates []Phase
	deleted []string
}

func (o *recordingObserver) MatchUpdated(m *Match) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, m.Phase)
}

func (o *recordingObserver) MatchDeleted(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, id)
}

// fakeClock is an adjustable clock for deadline tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testRules() Rules {
	r := DefaultRules()
	r.QuestionsPerRound = 2
	return r
}

func newTestEngine(t *testing.T, source question.Source, rules Rules) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	picker := question.NewTopicPicker([]string{"History"}, func(int) int { return 0 })
	e := NewEngine(NewMemoryStore(), source, picker, rules, zerolog.Nop(), EngineOptions{Clock: clock.Now})
	return e, clock
}

func createTestMatch(t *testing.T, e *Engine) *Match {
	t.Helper()
	m, err := e.CreateMatch(context.Background(),
		Player{ID: "p0", DisplayName: "Asha"},
		Player{ID: "p1", DisplayName: "Bram"},
	)
	require.NoError(t, err)
	return m
}

func TestCreateMatchStartsInTopicSelection(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := createTestMatch(t, e)

	assert.Equal(t, PhaseTopicSelection, m.Phase)
	assert.Equal(t, [2]string{"p0", "p1"}, m.PlayerIDs)
	assert.Empty(t, m.Questions)
	assert.Zero(t, m.Players[0].Score)
	assert.Zero(t, m.Players[1].Score)

	found, err := e.ActiveMatchForPlayer(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)
}

func TestSubmitTopicFirstDoesNotAdvance(t *testing.T) {
	src := &stubSource{}
	e, _ := newTestEngine(t, src, testRules())
	m := createTestMatch(t, e)

	got, result, err := e.SubmitTopic(context.Background(), m.ID, "p0", "Space")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, PhaseTopicSelection, got.Phase)
	assert.True(t, got.Players[0].TopicSubmitted)
	assert.Empty(t, src.topics())
}

func TestSubmitTopicSecondStartsRoundOne(t *testing.T) {
	src := &stubSource{}
	e, _ := newTestEngine(t, src, testRules())
	m := createTestMatch(t, e)

	_, _, err := e.SubmitTopic(context.Background(), m.ID, "p0", "Space")
	require.NoError(t, err)
	got, result, err := e.SubmitTopic(context.Background(), m.ID, "p1", "Oceans")
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, PhaseRound1, got.Phase)
	assert.Equal(t, 1, got.Round)
	assert.Equal(t, 0, got.CurrentQuestionIndex)
	assert.Len(t, got.Questions, 2)
	// Round 1 uses players[0]'s topic.
	assert.Equal(t, []string{"Space"}, src.topics())
}

func TestSubmitTopicIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := createTestMatch(t, e)

	_, first, err := e.SubmitTopic(context.Background(), m.ID, "p0", "Space")
	require.NoError(t, err)
	got, second, err := e.SubmitTopic(context.Background(), m.ID, "p0", "Different")
	require.NoError(t, err)

	assert.True(t, first.Accepted)
	assert.False(t, second.Accepted)
	assert.Equal(t, ReasonTopicAlreadySet, second.Reason)
	assert.Equal(t, "Space", got.Players[0].Topic)
}

func TestSubmitTopicRejectsOutsiders(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := createTestMatch(t, e)

	_, _, err := e.SubmitTopic(context.Background(), m.ID, "intruder", "Space")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, _, err = e.SubmitTopic(context.Background(), "missing", "p0", "Space")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestTopicResolutionCopiesSingleTopic(t *testing.T) {
	src := &stubSource{}
	e, _ := newTestEngine(t, src, testRules())
	m := createTestMatch(t, e)

	_, _, err := e.SubmitTopic(context.Background(), m.ID, "p0", "   ")
	require.NoError(t, err)
	got, _, err := e.SubmitTopic(context.Background(), m.ID, "p1", "Oceans")
	require.NoError(t, err)

	assert.Equal(t, "Oceans", got.Players[0].Topic)
	assert.Equal(t, "Oceans", got.Players[1].Topic)
}

func TestTopicResolutionFallsBackWhenBothEmpty(t *testing.T) {
	src := &stubSource{}
	e, _ := newTestEngine(t, src, testRules())
	m := createTestMatch(t, e)

	_, _, err := e.SubmitTopic(context.Background(), m.ID, "p0", "")
	require.NoError(t, err)
	got, _, err := e.SubmitTopic(context.Background(), m.ID, "p1", "")
	require.NoError(t, err)

	assert.Equal(t, "History", got.Players[0].Topic)
	assert.Equal(t, "History", got.Players[1].Topic)
	assert.Equal(t, PhaseRound1, got.Phase)
}

func beginRoundOne(t *testing.T, e *Engine, m *Match) *Match {
	t.Helper()
	_, _, err := e.SubmitTopic(context.Background(), m.ID, "p0", "Space")
	require.NoError(t, err)
	got, _, err := e.SubmitTopic(context.Background(), m.ID, "p1", "Oceans")
	require.NoError(t, err)
	require.Equal(t, PhaseRound1, got.Phase)
	return got
}

func TestSubmitAnswerFirstDoesNotScore(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	got, result, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 0, "A")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 0, got.CurrentQuestionIndex)
	assert.Zero(t, got.Players[0].Score)
}

func TestSubmitAnswerScoresOnSecondAndAdvances(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	_, _, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 0, "A")
	require.NoError(t, err)
	got, _, err := e.SubmitAnswer(context.Background(), m.ID, "p1", 0, "B")
	require.NoError(t, err)

	assert.Equal(t, 10, got.Players[0].Score)
	assert.Equal(t, 0, got.Players[1].Score)
	assert.Equal(t, 1, got.CurrentQuestionIndex)
}

func TestSubmitAnswerScoringOrderIndependent(t *testing.T) {
	for _, order := range [][2]string{{"p0", "p1"}, {"p1", "p0"}} {
		e, _ := newTestEngine(t, &stubSource{}, testRules())
		m := beginRoundOne(t, e, createTestMatch(t, e))

		_, _, err := e.SubmitAnswer(context.Background(), m.ID, order[0], 0, "A")
		require.NoError(t, err)
		got, _, err := e.SubmitAnswer(context.Background(), m.ID, order[1], 0, "A")
		require.NoError(t, err)

		assert.Equal(t, 10, got.Players[0].Score)
		assert.Equal(t, 10, got.Players[1].Score)
	}
}

func TestSubmitAnswerWriteOnce(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	_, _, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 0, "A")
	require.NoError(t, err)
	got, result, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 0, "B")
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonAlreadyAnswered, result.Reason)
	assert.Equal(t, "A", got.Players[0].Answers[0])
	assert.Zero(t, got.Players[0].Score)
}

func TestSubmitAnswerRejectsStaleIndex(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	_, _, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 1, "A")
	assert.ErrorIs(t, err, ErrStaleQuestion)

	_, _, err = e.SubmitAnswer(context.Background(), m.ID, "p0", -1, "A")
	assert.ErrorIs(t, err, ErrStaleQuestion)
}

func TestSubmitAnswerRejectsWrongPhase(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := createTestMatch(t, e)

	_, _, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 0, "A")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func answerBoth(t *testing.T, e *Engine, m *Match, index int, a0, a1 string) *Match {
	t.Helper()
	_, _, err := e.SubmitAnswer(context.Background(), m.ID, "p0", index, a0)
	require.NoError(t, err)
	got, _, err := e.SubmitAnswer(context.Background(), m.ID, "p1", index, a1)
	require.NoError(t, err)
	return got
}

func TestLastQuestionOfRoundOneStartsRoundTwo(t *testing.T) {
	src := &stubSource{}
	e, _ := newTestEngine(t, src, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	answerBoth(t, e, m, 0, "A", "A")
	got := answerBoth(t, e, m, 1, "A", "B")

	assert.Equal(t, PhaseRound2, got.Phase)
	assert.Equal(t, 2, got.Round)
	assert.Equal(t, 0, got.CurrentQuestionIndex)
	// Round 2 uses players[1]'s topic; answers reset per round pack.
	assert.Equal(t, []string{"Space", "Oceans"}, src.topics())
	assert.Equal(t, 20, got.Players[0].Score)
	assert.Equal(t, 10, got.Players[1].Score)
}

func TestFullDuelFinishesWithCorrectScores(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	// Round 1: p0 both correct, p1 one correct.
	answerBoth(t, e, m, 0, "A", "A")
	answerBoth(t, e, m, 1, "A", "B")
	// Round 2: p0 one correct, p1 one correct.
	answerBoth(t, e, m, 0, "A", "B")
	got := answerBoth(t, e, m, 1, "C", "A")

	assert.Equal(t, PhaseFinished, got.Phase)
	assert.Equal(t, 30, got.Players[0].Score)
	assert.Equal(t, 20, got.Players[1].Score)
}

func TestRoundTwoAnswersReuseIndexSpace(t *testing.T) {
	e, _ := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	answerBoth(t, e, m, 0, "A", "A")
	answerBoth(t, e, m, 1, "A", "A")

	// Index 0 is current again in round 2 even though it was answered in
	// round 1: answer maps are reset by the round flip.
	got, result, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 0, "A")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, PhaseRound2, got.Phase)
}

func TestGenerationFailureOnSecondTopicKeepsTopicSelection(t *testing.T) {
	src := &stubSource{fail: &question.GenerationError{Reason: "upstream down"}}
	e, _ := newTestEngine(t, src, testRules())
	m := createTestMatch(t, e)

	_, _, err := e.SubmitTopic(context.Background(), m.ID, "p0", "Space")
	require.NoError(t, err)
	_, _, err = e.SubmitTopic(context.Background(), m.ID, "p1", "Oceans")
	require.Error(t, err)
	var genErr *question.GenerationError
	assert.ErrorAs(t, err, &genErr)

	got, err := e.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseTopicSelection, got.Phase)
	assert.Empty(t, got.Questions)
	// Topics persisted so a retry does not wait on the players again.
	assert.True(t, got.Players[1].TopicSubmitted)
	assert.Equal(t, "Oceans", got.Players[1].Topic)
}

func TestGenerationFailureOnLastAnswerPersistsNothing(t *testing.T) {
	src := &stubSource{}
	e, _ := newTestEngine(t, src, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))
	answerBoth(t, e, m, 0, "A", "A")

	_, _, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 1, "A")
	require.NoError(t, err)

	src.mu.Lock()
	src.fail = &question.GenerationError{Reason: "upstream down"}
	src.mu.Unlock()

	_, _, err = e.SubmitAnswer(context.Background(), m.ID, "p1", 1, "A")
	require.Error(t, err)

	got, err := e.Get(context.Background(), m.ID)
	require.NoError(t, err)
	// The failed submission left no trace: answer absent, round unscored.
	assert.Equal(t, PhaseRound1, got.Phase)
	_, recorded := got.Players[1].Answers[1]
	assert.False(t, recorded)
	assert.Equal(t, 10, got.Players[0].Score)

	// Retry succeeds and scores exactly once.
	src.mu.Lock()
	src.fail = nil
	src.mu.Unlock()
	retried, result, err := e.SubmitAnswer(context.Background(), m.ID, "p1", 1, "A")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, PhaseRound2, retried.Phase)
	assert.Equal(t, 20, retried.Players[0].Score)
	assert.Equal(t, 20, retried.Players[1].Score)
}

func TestForceTopicDeadline(t *testing.T) {
	e, clock := newTestEngine(t, &stubSource{}, testRules())
	m := createTestMatch(t, e)

	forced, err := e.ForceTopicDeadline(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, forced, "window not elapsed yet")

	clock.Advance(31 * time.Second)
	forced, err = e.ForceTopicDeadline(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, forced)

	got, err := e.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseRound1, got.Phase)
	assert.Equal(t, "History", got.Players[0].Topic)
	assert.Equal(t, "History", got.Players[1].Topic)

	// A second forcing is a no-op.
	forced, err = e.ForceTopicDeadline(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, forced)
}

func TestForceTopicDeadlineKeepsSubmittedTopic(t *testing.T) {
	e, clock := newTestEngine(t, &stubSource{}, testRules())
	m := createTestMatch(t, e)

	_, _, err := e.SubmitTopic(context.Background(), m.ID, "p1", "Oceans")
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	forced, err := e.ForceTopicDeadline(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, forced)

	got, err := e.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oceans", got.Players[0].Topic)
	assert.Equal(t, "Oceans", got.Players[1].Topic)
}

func TestForceRoundDeadlineAdvancesWithoutScoring(t *testing.T) {
	e, clock := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))

	_, _, err := e.SubmitAnswer(context.Background(), m.ID, "p0", 0, "A")
	require.NoError(t, err)

	forced, err := e.ForceRoundDeadline(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, forced, "round still inside duration plus grace")

	clock.Advance(126 * time.Second)
	forced, err = e.ForceRoundDeadline(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, forced)

	got, err := e.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseRound2, got.Phase)
	// p0's lone unpaired answer never scored.
	assert.Zero(t, got.Players[0].Score)
}

func TestForceRoundDeadlineFinishesRoundTwo(t *testing.T) {
	e, clock := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))
	answerBoth(t, e, m, 0, "A", "A")
	answerBoth(t, e, m, 1, "A", "A")

	clock.Advance(126 * time.Second)
	forced, err := e.ForceRoundDeadline(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, forced)

	got, err := e.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, got.Phase)
	assert.Equal(t, 20, got.Players[0].Score)
}

func TestCollectFinished(t *testing.T) {
	e, clock := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))
	answerBoth(t, e, m, 0, "A", "A")
	answerBoth(t, e, m, 1, "A", "A")
	answerBoth(t, e, m, 0, "A", "A")
	got := answerBoth(t, e, m, 1, "A", "A")
	require.Equal(t, PhaseFinished, got.Phase)

	collected, err := e.CollectFinished(context.Background(), m.ID, nil)
	require.NoError(t, err)
	assert.False(t, collected, "retention not elapsed yet")

	clock.Advance(61 * time.Minute)

	var archived *Match
	collected, err = e.CollectFinished(context.Background(), m.ID, func(m *Match) error {
		archived = m
		return nil
	})
	require.NoError(t, err)
	assert.True(t, collected)
	require.NotNil(t, archived)
	assert.Equal(t, 40, archived.Players[0].Score)

	_, err = e.Get(context.Background(), m.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestCollectFinishedArchiveFailureKeepsMatch(t *testing.T) {
	e, clock := newTestEngine(t, &stubSource{}, testRules())
	m := beginRoundOne(t, e, createTestMatch(t, e))
	answerBoth(t, e, m, 0, "A", "A")
	answerBoth(t, e, m, 1, "A", "A")
	answerBoth(t, e, m, 0, "A", "A")
	answerBoth(t, e, m, 1, "A", "A")

	clock.Advance(61 * time.Minute)
	collected, err := e.CollectFinished(context.Background(), m.ID, func(*Match) error {
		return errors.New("archive db down")
	})
	require.Error(t, err)
	assert.False(t, collected)

	_, err = e.Get(context.Background(), m.ID)
	assert.NoError(t, err, "match survives until archived")
}

func TestObserverSeesEveryCommittedTransition(t *testing.T) {
	e, clock := newTestEngine(t, &stubSource{}, testRules())
	obs := &recordingObserver{}
	e.SetObserver(obs)

	m := createTestMatch(t, e)
	beginRoundOne(t, e, m)
	clock.Advance(126 * time.Second)
	_, err := e.ForceRoundDeadline(context.Background(), m.ID)
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.NotEmpty(t, obs.updates)
	assert.Equal(t, PhaseTopicSelection, obs.updates[0])
	assert.Equal(t, PhaseRound2, obs.updates[len(obs.updates)-1])
}
