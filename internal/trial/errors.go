package trial

import "errors"

var (
	// ErrMatchNotFound means the referenced match does not exist or has been
	// garbage-collected.
	ErrMatchNotFound = errors.New("match not found")

	// ErrNotParticipant means the caller's identity is not one of the two
	// players of the referenced match.
	ErrNotParticipant = errors.New("not a participant of this match")

	// ErrInvalidPhase means the action is not accepted in the match's
	// current phase.
	ErrInvalidPhase = errors.New("action not valid in current phase")

	// ErrStaleQuestion means the submitted question index does not equal the
	// match's current question index.
	ErrStaleQuestion = errors.New("question index does not match current question")

	// ErrConflict means another writer holds the match lock; the caller
	// should re-read state and decide whether to retry.
	ErrConflict = errors.New("concurrent update in progress")
)
