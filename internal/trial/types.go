package trial

import (
	"time"

	"github.com/gurukulapp/heavenly-trial/internal/question"
)

// Player is one of exactly two participants embedded in a match document.
type Player struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	Score          int            `json:"score"`
	Topic          string         `json:"topic"`
	TopicSubmitted bool           `json:"topic_submitted"`
	Answers        map[int]string `json:"answers"` // question index -> option, write-once per index
}

// Match is the authoritative per-duel document. It is jointly owned by both
// players' clients and the timeout sweeper; every mutation happens under the
// store's per-match lock as a read-validate-write.
type Match struct {
	ID                   string              `json:"id"`
	PlayerIDs            [2]string           `json:"player_ids"`
	Players              [2]Player           `json:"players"`
	Phase                Phase               `json:"phase"`
	Round                int                 `json:"round"` // 1 or 2, meaningful during rounds
	Questions            []question.Question `json:"questions"`
	CurrentQuestionIndex int                 `json:"current_question_index"`
	CreatedAt            time.Time           `json:"created_at"`
	PhaseEnteredAt       map[Phase]time.Time `json:"phase_entered_at"`
	Version              int64               `json:"version"` // bumped on every store update
}

// PlayerIndex returns 0 or 1 for a participant, -1 otherwise.
func (m *Match) PlayerIndex(playerID string) int {
	for i, id := range m.PlayerIDs {
		if id == playerID {
			return i
		}
	}
	return -1
}

// BothAnswered reports whether both players have an answer for index.
func (m *Match) BothAnswered(index int) bool {
	_, ok0 := m.Players[0].Answers[index]
	_, ok1 := m.Players[1].Answers[index]
	return ok0 && ok1
}

// SubmitResult distinguishes an idempotent no-op from an accepted mutation.
// Duplicate submissions are expected under retry and reconnect, so they are
// reported here rather than as errors.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Reasons for rejected-but-not-erroneous submissions.
const (
	ReasonAlreadyAnswered = "already answered"
	ReasonTopicAlreadySet = "topic already submitted"
)
