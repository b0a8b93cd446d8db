package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeFindMatch    = "find_match"
	TypeCancelSearch = "cancel_search"
	TypeSubmitTopic  = "submit_topic"
	TypeSubmitAnswer = "submit_answer"
	TypeGetState     = "get_state"

	// Server -> Client
	TypeQueueUpdate = "queue_update"
	TypeMatchFound  = "match_found"
	TypeStateUpdate = "state_update"
	TypeTopicAck    = "topic_ack"
	TypeAnswerAck   = "answer_ack"
	TypeError       = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type SubmitTopicPayload struct {
	MatchID string `json:"match_id"`
	Topic   string `json:"topic"`
}

type SubmitAnswerPayload struct {
	MatchID       string `json:"match_id"`
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
}

type GetStatePayload struct {
	MatchID string `json:"match_id,omitempty"`
}

// Server Messages (outgoing)

type QueueUpdatePayload struct {
	Status string `json:"status"` // "searching" or "cancelled"
}

type MatchFoundPayload struct {
	MatchID string       `json:"match_id"`
	Players []PlayerView `json:"players"`
}

type TopicAckPayload struct {
	MatchID  string `json:"match_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type AnswerAckPayload struct {
	MatchID       string `json:"match_id"`
	QuestionIndex int    `json:"question_index"`
	Accepted      bool   `json:"accepted"`
	Reason        string `json:"reason,omitempty"`
}

// StateUpdatePayload carries a full match snapshot after every committed
// transition. Correct answers are never included.
type StateUpdatePayload struct {
	MatchID              string         `json:"match_id"`
	Phase                string         `json:"phase"`
	Round                int            `json:"round"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	Questions            []QuestionView `json:"questions"`
	Players              []PlayerView   `json:"players"`
	PhaseDeadline        string         `json:"phase_deadline,omitempty"` // RFC3339
}

type QuestionView struct {
	Index   int      `json:"index"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type PlayerView struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	Score          int    `json:"score"`
	Topic          string `json:"topic,omitempty"`
	TopicSubmitted bool   `json:"topic_submitted"`
	Answered       []int  `json:"answered"` // question indices already answered
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
