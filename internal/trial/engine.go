package trial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gurukulapp/heavenly-trial/internal/metrics"
	"github.com/gurukulapp/heavenly-trial/internal/question"
)

// Rules holds the gameplay constants of a duel.
type Rules struct {
	QuestionsPerRound    int
	PointsPerCorrect     int
	Difficulty           string
	TopicSelectionWindow time.Duration
	RoundDuration        time.Duration
	RoundGrace           time.Duration
	FinishedRetention    time.Duration
}

// DefaultRules returns production defaults.
func DefaultRules() Rules {
	return Rules{
		QuestionsPerRound:    5,
		PointsPerCorrect:     10,
		Difficulty:           question.DifficultyMedium,
		TopicSelectionWindow: 30 * time.Second,
		RoundDuration:        120 * time.Second,
		RoundGrace:           5 * time.Second,
		FinishedRetention:    time.Hour,
	}
}

// Observer receives committed state changes for fan-out to subscribed
// clients. Both player-triggered and sweeper-forced transitions report here.
type Observer interface {
	MatchUpdated(m *Match)
	MatchDeleted(matchID string)
}

// Engine applies the duel transition rules. Every mutation is a
// read-validate-write under the store's per-match lock, so player actions
// and sweeper forcings never interleave on the same match.
type Engine struct {
	store    Store
	source   question.Source
	picker   *question.TopicPicker
	rules    Rules
	now      func() time.Time
	observer Observer
	logger   zerolog.Logger
}

// EngineOptions configures optional engine behavior.
type EngineOptions struct {
	// Clock overrides time.Now for deterministic deadline tests.
	Clock func() time.Time
}

// NewEngine creates a transition engine.
func NewEngine(store Store, source question.Source, picker *question.TopicPicker, rules Rules, logger zerolog.Logger, opts EngineOptions) *Engine {
	if rules.QuestionsPerRound <= 0 {
		rules = DefaultRules()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:  store,
		source: source,
		picker: picker,
		rules:  rules,
		now:    now,
		logger: logger.With().Str("component", "trial_engine").Logger(),
	}
}

// SetObserver registers the state-change observer. Must be called before the
// engine serves traffic.
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

// Rules returns the engine's gameplay constants.
func (e *Engine) Rules() Rules {
	return e.rules
}

// CreateMatch creates a duel in topic selection. The waiter (the player who
// was already queued) becomes players[0], whose topic seeds round 1; the new
// arrival becomes players[1], whose topic seeds round 2.
func (e *Engine) CreateMatch(ctx context.Context, waiter, arrival Player) (*Match, error) {
	now := e.now()
	m := &Match{
		ID:             uuid.NewString(),
		PlayerIDs:      [2]string{waiter.ID, arrival.ID},
		Players:        [2]Player{freshPlayer(waiter), freshPlayer(arrival)},
		Phase:          PhaseTopicSelection,
		Round:          1,
		Questions:      []question.Question{},
		CreatedAt:      now,
		PhaseEnteredAt: map[Phase]time.Time{PhaseTopicSelection: now},
	}

	if err := e.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	metrics.MatchesCreated.Inc()
	e.logger.Info().
		Str("match_id", m.ID).
		Str("player_0", waiter.ID).
		Str("player_1", arrival.ID).
		Msg("match created")

	e.notifyUpdated(m)
	return m, nil
}

// Get returns the current match document.
func (e *Engine) Get(ctx context.Context, matchID string) (*Match, error) {
	return e.store.Get(ctx, matchID)
}

// ActiveMatchForPlayer returns the match containing the player, if any.
func (e *Engine) ActiveMatchForPlayer(ctx context.Context, playerID string) (*Match, error) {
	return e.store.FindByPlayer(ctx, playerID)
}

// MatchesInPhase lists match ids currently in a phase, for the sweeper.
func (e *Engine) MatchesInPhase(ctx context.Context, phase Phase) ([]string, error) {
	return e.store.ListByPhase(ctx, phase)
}

// SubmitTopic records a player's topic choice. When the second topic lands,
// topics are resolved and round 1 begins. A repeated submission is an
// idempotent no-op reported through SubmitResult.
func (e *Engine) SubmitTopic(ctx context.Context, matchID, playerID, topic string) (*Match, SubmitResult, error) {
	unlock, err := e.store.Lock(ctx, matchID)
	if err != nil {
		return nil, SubmitResult{}, err
	}
	defer unlock()

	m, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, SubmitResult{}, err
	}

	idx := m.PlayerIndex(playerID)
	if idx < 0 {
		return nil, SubmitResult{}, ErrNotParticipant
	}
	if m.Phase != PhaseTopicSelection {
		return nil, SubmitResult{}, ErrInvalidPhase
	}
	if m.Players[idx].TopicSubmitted {
		return m, SubmitResult{Accepted: false, Reason: ReasonTopicAlreadySet}, nil
	}

	m.Players[idx].Topic = strings.TrimSpace(topic)
	m.Players[idx].TopicSubmitted = true

	if m.Players[0].TopicSubmitted && m.Players[1].TopicSubmitted {
		e.resolveTopics(m)
		if err := e.beginRound(ctx, m, 1); err != nil {
			// Persist the resolved topics so the sweeper can retry
			// generation; the phase stays TopicSelection.
			if uerr := e.store.Update(ctx, m); uerr != nil {
				e.logger.Error().Err(uerr).Str("match_id", m.ID).Msg("persist topics after generation failure")
			} else {
				e.notifyUpdated(m)
			}
			return nil, SubmitResult{}, err
		}
	}

	if err := e.store.Update(ctx, m); err != nil {
		return nil, SubmitResult{}, err
	}
	e.notifyUpdated(m)
	return m, SubmitResult{Accepted: true}, nil
}

// SubmitAnswer records a player's answer for the current question. The
// answer for an index is write-once; a duplicate is an idempotent no-op.
// When the second answer for the index lands, both players are scored
// exactly once and the match advances.
func (e *Engine) SubmitAnswer(ctx context.Context, matchID, playerID string, questionIndex int, option string) (*Match, SubmitResult, error) {
	unlock, err := e.store.Lock(ctx, matchID)
	if err != nil {
		return nil, SubmitResult{}, err
	}
	defer unlock()

	m, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, SubmitResult{}, err
	}

	idx := m.PlayerIndex(playerID)
	if idx < 0 {
		return nil, SubmitResult{}, ErrNotParticipant
	}
	if !m.Phase.IsRound() {
		return nil, SubmitResult{}, ErrInvalidPhase
	}
	if questionIndex != m.CurrentQuestionIndex {
		return nil, SubmitResult{}, ErrStaleQuestion
	}
	if _, dup := m.Players[idx].Answers[questionIndex]; dup {
		return m, SubmitResult{Accepted: false, Reason: ReasonAlreadyAnswered}, nil
	}

	if m.Players[idx].Answers == nil {
		m.Players[idx].Answers = make(map[int]string)
	}
	m.Players[idx].Answers[questionIndex] = option

	if m.BothAnswered(questionIndex) {
		e.scoreQuestion(m, questionIndex)

		if questionIndex == len(m.Questions)-1 {
			if m.Phase == PhaseRound1 {
				if err := e.beginRound(ctx, m, 2); err != nil {
					// Nothing is persisted: the submission fails wholesale so
					// a retry re-runs scoring and generation together.
					return nil, SubmitResult{}, err
				}
			} else {
				e.finish(m)
			}
		} else {
			m.CurrentQuestionIndex++
		}
	}

	if err := e.store.Update(ctx, m); err != nil {
		return nil, SubmitResult{}, err
	}
	e.notifyUpdated(m)
	return m, SubmitResult{Accepted: true}, nil
}

// ForceTopicDeadline resolves topics and starts round 1 for a match whose
// topic-selection window has elapsed. Players who never submitted are
// treated as having submitted an empty topic. Returns true when a
// transition was applied.
func (e *Engine) ForceTopicDeadline(ctx context.Context, matchID string) (bool, error) {
	unlock, err := e.store.Lock(ctx, matchID)
	if err != nil {
		return false, err
	}
	defer unlock()

	m, err := e.store.Get(ctx, matchID)
	if errors.Is(err, ErrMatchNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if m.Phase != PhaseTopicSelection {
		return false, nil
	}
	entered := m.PhaseEnteredAt[PhaseTopicSelection]
	if entered.IsZero() {
		entered = m.CreatedAt
	}
	if e.now().Sub(entered) <= e.rules.TopicSelectionWindow {
		return false, nil
	}

	for i := range m.Players {
		m.Players[i].TopicSubmitted = true
	}
	e.resolveTopics(m)

	if err := e.beginRound(ctx, m, 1); err != nil {
		if uerr := e.store.Update(ctx, m); uerr != nil {
			e.logger.Error().Err(uerr).Str("match_id", m.ID).Msg("persist forced topics after generation failure")
		} else {
			e.notifyUpdated(m)
		}
		return false, err
	}

	if err := e.store.Update(ctx, m); err != nil {
		return false, err
	}
	e.notifyUpdated(m)
	return true, nil
}

// ForceRoundDeadline ends an overdue round exactly as the last-question
// branch of SubmitAnswer would, without requiring all answers. Unanswered
// slots never score. Returns true when a transition was applied.
func (e *Engine) ForceRoundDeadline(ctx context.Context, matchID string) (bool, error) {
	unlock, err := e.store.Lock(ctx, matchID)
	if err != nil {
		return false, err
	}
	defer unlock()

	m, err := e.store.Get(ctx, matchID)
	if errors.Is(err, ErrMatchNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !m.Phase.IsRound() {
		return false, nil
	}
	entered := m.PhaseEnteredAt[m.Phase]
	if e.now().Sub(entered) <= e.rules.RoundDuration+e.rules.RoundGrace {
		return false, nil
	}

	if m.Phase == PhaseRound1 {
		if err := e.beginRound(ctx, m, 2); err != nil {
			return false, err
		}
	} else {
		e.finish(m)
	}

	if err := e.store.Update(ctx, m); err != nil {
		return false, err
	}
	e.notifyUpdated(m)
	return true, nil
}

// CollectFinished deletes a match whose finished retention has elapsed,
// invoking archive (when non-nil) before deletion. Returns true when the
// match was deleted.
func (e *Engine) CollectFinished(ctx context.Context, matchID string, archive func(*Match) error) (bool, error) {
	unlock, err := e.store.Lock(ctx, matchID)
	if err != nil {
		return false, err
	}
	defer unlock()

	m, err := e.store.Get(ctx, matchID)
	if errors.Is(err, ErrMatchNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if m.Phase != PhaseFinished {
		return false, nil
	}
	if e.now().Sub(m.PhaseEnteredAt[PhaseFinished]) <= e.rules.FinishedRetention {
		return false, nil
	}

	if archive != nil {
		if err := archive(m); err != nil {
			return false, fmt.Errorf("archive match: %w", err)
		}
	}

	if err := e.store.Delete(ctx, m.ID); err != nil {
		return false, err
	}
	if e.observer != nil {
		e.observer.MatchDeleted(m.ID)
	}
	return true, nil
}

// PhaseDeadline returns the instant the current phase is forcibly ended, for
// client countdowns. The grace period is server-side only.
func (e *Engine) PhaseDeadline(m *Match) (time.Time, bool) {
	entered, ok := m.PhaseEnteredAt[m.Phase]
	if !ok {
		return time.Time{}, false
	}
	switch {
	case m.Phase == PhaseTopicSelection:
		return entered.Add(e.rules.TopicSelectionWindow), true
	case m.Phase.IsRound():
		return entered.Add(e.rules.RoundDuration), true
	default:
		return time.Time{}, false
	}
}

// resolveTopics fills empty topics per the selection rule: both kept when
// both present, the single non-empty one copied to the other, or one shared
// fallback topic when neither submitted anything.
func (e *Engine) resolveTopics(m *Match) {
	t0 := strings.TrimSpace(m.Players[0].Topic)
	t1 := strings.TrimSpace(m.Players[1].Topic)

	switch {
	case t0 != "" && t1 != "":
	case t0 == "" && t1 == "":
		t := e.picker.Pick()
		t0, t1 = t, t
	case t0 == "":
		t0 = t1
	default:
		t1 = t0
	}

	m.Players[0].Topic = t0
	m.Players[1].Topic = t1
}

// beginRound generates the round's questions and applies the phase flip in
// one document write. Round 1 uses players[0].topic, round 2 players[1].topic.
func (e *Engine) beginRound(ctx context.Context, m *Match, round int) error {
	topic := m.Players[round-1].Topic

	qs, err := e.source.Generate(ctx, topic, e.rules.QuestionsPerRound, e.rules.Difficulty)
	if err != nil {
		metrics.GenerationFailures.Inc()
		return err
	}
	if err := question.ValidatePack(qs, e.rules.QuestionsPerRound); err != nil {
		metrics.GenerationFailures.Inc()
		return err
	}

	phase := PhaseRound1
	if round == 2 {
		phase = PhaseRound2
	}
	if !CanTransition(m.Phase, phase) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhase, m.Phase, phase)
	}

	m.Questions = qs
	m.CurrentQuestionIndex = 0
	m.Round = round
	m.Phase = phase
	// Indices restart at zero for the new pack.
	for i := range m.Players {
		m.Players[i].Answers = make(map[int]string)
	}
	if m.PhaseEnteredAt == nil {
		m.PhaseEnteredAt = make(map[Phase]time.Time)
	}
	m.PhaseEnteredAt[phase] = e.now()

	metrics.Transitions.WithLabelValues(string(phase)).Inc()
	e.logger.Info().
		Str("match_id", m.ID).
		Int("round", round).
		Str("topic", topic).
		Msg("round started")
	return nil
}

// scoreQuestion awards points for an index once both answers are present.
// Called exactly once per index, in the same write that records the second
// answer.
func (e *Engine) scoreQuestion(m *Match, index int) {
	q := m.Questions[index]
	for i := range m.Players {
		if m.Players[i].Answers[index] == q.Answer {
			m.Players[i].Score += e.rules.PointsPerCorrect
		}
	}
}

func (e *Engine) finish(m *Match) {
	m.Phase = PhaseFinished
	if m.PhaseEnteredAt == nil {
		m.PhaseEnteredAt = make(map[Phase]time.Time)
	}
	m.PhaseEnteredAt[PhaseFinished] = e.now()
	metrics.Transitions.WithLabelValues(string(PhaseFinished)).Inc()
	e.logger.Info().
		Str("match_id", m.ID).
		Int("score_0", m.Players[0].Score).
		Int("score_1", m.Players[1].Score).
		Msg("match finished")
}

func (e *Engine) notifyUpdated(m *Match) {
	if e.observer != nil {
		e.observer.MatchUpdated(m)
	}
}

func freshPlayer(p Player) Player {
	return Player{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Score:       0,
		Topic:       "",
		Answers:     make(map[int]string),
	}
}
