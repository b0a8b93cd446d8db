package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurukulapp/heavenly-trial/internal/auth"
	"github.com/gurukulapp/heavenly-trial/internal/matchmaking"
	"github.com/gurukulapp/heavenly-trial/internal/question"
	"github.com/gurukulapp/heavenly-trial/internal/trial"
	httperrors "github.com/gurukulapp/heavenly-trial/pkg/http/errors"
	"github.com/gurukulapp/heavenly-trial/pkg/http/ws"
)

const maxTopicLength = 50

// Matchmaker is the queue surface the handler drives.
type Matchmaker interface {
	FindMatch(ctx context.Context, player trial.Player) (matchmaking.FindResult, error)
	CancelSearch(ctx context.Context, playerID string) error
}

// Handler routes websocket messages to the matchmaker and the trial engine,
// and fans committed state changes back out to connected players.
type Handler struct {
	engine     *trial.Engine
	matchmaker Matchmaker
	hub        *ws.Hub
	tokens     *auth.Manager
	logger     zerolog.Logger
}

func NewHandler(engine *trial.Engine, matchmaker Matchmaker, hub *ws.Hub, tokens *auth.Manager, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:     engine,
		matchmaker: matchmaker,
		hub:        hub,
		tokens:     tokens,
		logger:     logger.With().Str("component", "gateway").Logger(),
	}
}

// MatchUpdated pushes a fresh snapshot to both participants. Implements
// trial.Observer, so sweeper-forced transitions reach clients through the
// same path as player actions.
func (h *Handler) MatchUpdated(m *trial.Match) {
	msg := ws.Message{Type: ws.TypeStateUpdate}
	msg.Payload, _ = json.Marshal(h.snapshot(m))
	for _, playerID := range m.PlayerIDs {
		if err := h.hub.SendToPlayer(playerID, msg); err != nil && !errors.Is(err, ws.ErrConnectionNotFound) {
			h.logger.Warn().Err(err).
				Str("match_id", m.ID).
				Str("player_id", playerID).
				Msg("push state update")
		}
	}
}

// MatchDeleted drops hub bookkeeping for a collected match. Implements
// trial.Observer.
func (h *Handler) MatchDeleted(matchID string) {
	h.hub.ForgetMatch(matchID)
}

func (h *Handler) handleMessage(ctx context.Context, claims *auth.Claims, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeFindMatch:
		return h.handleFindMatch(ctx, claims)
	case ws.TypeCancelSearch:
		return h.handleCancelSearch(ctx, claims.PlayerID)
	case ws.TypeSubmitTopic:
		return h.handleSubmitTopic(ctx, claims.PlayerID, msg.Payload)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, claims.PlayerID, msg.Payload)
	case ws.TypeGetState:
		return h.handleGetState(ctx, claims.PlayerID, msg.Payload)
	default:
		return h.sendError(claims.PlayerID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleFindMatch(ctx context.Context, claims *auth.Claims) error {
	player := trial.Player{
		ID:          claims.PlayerID,
		DisplayName: claims.DisplayName,
		AvatarURL:   claims.AvatarURL,
	}

	result, err := h.matchmaker.FindMatch(ctx, player)
	if err != nil {
		if errors.Is(err, matchmaking.ErrAlreadyQueued) {
			return h.sendQueueUpdate(claims.PlayerID, "searching")
		}
		h.logger.Error().Err(err).Str("player_id", claims.PlayerID).Msg("find match")
		return h.sendError(claims.PlayerID, httperrors.ErrCodeEnqueueFailed, "Could not join the queue")
	}

	if result.Queued {
		return h.sendQueueUpdate(claims.PlayerID, "searching")
	}

	m := result.Match
	for _, playerID := range m.PlayerIDs {
		h.hub.JoinMatch(m.ID, playerID)
	}

	found := ws.MatchFoundPayload{
		MatchID: m.ID,
		Players: h.playerViews(m),
	}
	msg := ws.Message{Type: ws.TypeMatchFound}
	msg.Payload, _ = json.Marshal(found)
	h.hub.BroadcastToMatch(m.ID, msg)
	return nil
}

func (h *Handler) handleCancelSearch(ctx context.Context, playerID string) error {
	if err := h.matchmaker.CancelSearch(ctx, playerID); err != nil {
		h.logger.Error().Err(err).Str("player_id", playerID).Msg("cancel search")
		return h.sendError(playerID, httperrors.ErrCodeCancelFailed, "Could not leave the queue")
	}
	return h.sendQueueUpdate(playerID, "cancelled")
}

func (h *Handler) handleSubmitTopic(ctx context.Context, playerID string, payload json.RawMessage) error {
	var req ws.SubmitTopicPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, httperrors.ErrCodeInvalidPayload, "Invalid submit_topic payload")
	}
	if req.MatchID == "" {
		return h.sendError(playerID, httperrors.ErrCodeInvalidPayload, "Missing match_id")
	}
	if len(req.Topic) > maxTopicLength {
		return h.sendError(playerID, httperrors.ErrCodeInvalidPayload, "Topic too long")
	}

	m, result, err := h.engine.SubmitTopic(ctx, req.MatchID, playerID, req.Topic)
	if err != nil {
		return h.sendEngineError(playerID, err)
	}

	ack := ws.TopicAckPayload{
		MatchID:  m.ID,
		Accepted: result.Accepted,
		Reason:   result.Reason,
	}
	msg := ws.Message{Type: ws.TypeTopicAck}
	msg.Payload, _ = json.Marshal(ack)
	return h.hub.SendToPlayer(playerID, msg)
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, playerID string, payload json.RawMessage) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}
	if req.MatchID == "" {
		return h.sendError(playerID, httperrors.ErrCodeInvalidPayload, "Missing match_id")
	}

	m, result, err := h.engine.SubmitAnswer(ctx, req.MatchID, playerID, req.QuestionIndex, req.Answer)
	if err != nil {
		return h.sendEngineError(playerID, err)
	}

	ack := ws.AnswerAckPayload{
		MatchID:       m.ID,
		QuestionIndex: req.QuestionIndex,
		Accepted:      result.Accepted,
		Reason:        result.Reason,
	}
	msg := ws.Message{Type: ws.TypeAnswerAck}
	msg.Payload, _ = json.Marshal(ack)
	return h.hub.SendToPlayer(playerID, msg)
}

func (h *Handler) handleGetState(ctx context.Context, playerID string, payload json.RawMessage) error {
	var req ws.GetStatePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return h.sendError(playerID, httperrors.ErrCodeInvalidPayload, "Invalid get_state payload")
		}
	}

	var (
		m   *trial.Match
		err error
	)
	if req.MatchID != "" {
		m, err = h.engine.Get(ctx, req.MatchID)
	} else {
		m, err = h.engine.ActiveMatchForPlayer(ctx, playerID)
	}
	if err != nil {
		return h.sendEngineError(playerID, err)
	}
	if m.PlayerIndex(playerID) < 0 {
		return h.sendEngineError(playerID, trial.ErrNotParticipant)
	}

	msg := ws.Message{Type: ws.TypeStateUpdate}
	msg.Payload, _ = json.Marshal(h.snapshot(m))
	return h.hub.SendToPlayer(playerID, msg)
}

// snapshot converts the match document to its client view. Correct answers
// stay server-side.
func (h *Handler) snapshot(m *trial.Match) ws.StateUpdatePayload {
	questions := make([]ws.QuestionView, len(m.Questions))
	for i, q := range m.Questions {
		questions[i] = ws.QuestionView{
			Index:   i,
			Prompt:  q.Prompt,
			Options: q.Options,
		}
	}

	payload := ws.StateUpdatePayload{
		MatchID:              m.ID,
		Phase:                string(m.Phase),
		Round:                m.Round,
		CurrentQuestionIndex: m.CurrentQuestionIndex,
		Questions:            questions,
		Players:              h.playerViews(m),
	}
	if deadline, ok := h.engine.PhaseDeadline(m); ok {
		payload.PhaseDeadline = deadline.Format(time.RFC3339)
	}
	return payload
}

func (h *Handler) playerViews(m *trial.Match) []ws.PlayerView {
	views := make([]ws.PlayerView, len(m.Players))
	for i, p := range m.Players {
		answered := make([]int, 0, len(p.Answers))
		for idx := range p.Answers {
			answered = append(answered, idx)
		}
		sort.Ints(answered)

		views[i] = ws.PlayerView{
			ID:             p.ID,
			DisplayName:    p.DisplayName,
			AvatarURL:      p.AvatarURL,
			Score:          p.Score,
			Topic:          p.Topic,
			TopicSubmitted: p.TopicSubmitted,
			Answered:       answered,
		}
	}
	return views
}

func (h *Handler) sendQueueUpdate(playerID, status string) error {
	update := ws.QueueUpdatePayload{Status: status}
	msg := ws.Message{Type: ws.TypeQueueUpdate}
	msg.Payload, _ = json.Marshal(update)
	return h.hub.SendToPlayer(playerID, msg)
}

func (h *Handler) sendEngineError(playerID string, err error) error {
	var genErr *question.GenerationError

	switch {
	case errors.Is(err, trial.ErrMatchNotFound):
		return h.sendError(playerID, httperrors.ErrCodeNotFound, "Match not found")
	case errors.Is(err, trial.ErrNotParticipant):
		return h.sendError(playerID, httperrors.ErrCodeForbidden, "Not a participant of this match")
	case errors.Is(err, trial.ErrInvalidPhase):
		return h.sendError(playerID, httperrors.ErrCodeInvalidPhase, "Action not valid in the current phase")
	case errors.Is(err, trial.ErrStaleQuestion):
		return h.sendError(playerID, httperrors.ErrCodeStaleQuestion, "Answer targets a question that is no longer current")
	case errors.Is(err, trial.ErrConflict):
		return h.sendError(playerID, httperrors.ErrCodeConflict, "Match is busy, retry")
	case errors.As(err, &genErr):
		return h.sendError(playerID, httperrors.ErrCodeGenerationFailed, "Question generation failed, retry shortly")
	default:
		h.logger.Error().Err(err).Str("player_id", playerID).Msg("engine call failed")
		return h.sendError(playerID, httperrors.ErrCodeInternalError, "Internal error")
	}
}

func (h *Handler) sendError(playerID, code, message string) error {
	errPayload := ws.ErrorPayload{
		Code:    code,
		Message: message,
	}
	msg := ws.Message{Type: ws.TypeError}
	msg.Payload, _ = json.Marshal(errPayload)
	return h.hub.SendToPlayer(playerID, msg)
}
