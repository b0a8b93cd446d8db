package matchmaking

import (
	"context"
	"errors"
	"time"
)

// Entry is a player waiting in the queue.
type Entry struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// ErrAlreadyQueued reports an enqueue attempt by a player who is already
// waiting.
var ErrAlreadyQueued = errors.New("matchmaking: player already queued")

// QueueStore is the shared waiting pool. PairOrEnqueue must be atomic: when
// two players race, exactly one claims the other and no entry is left
// behind or claimed twice.
type QueueStore interface {
	// PairOrEnqueue claims and removes a waiting entry belonging to another
	// player, or enqueues the caller when none is waiting. A non-nil
	// opponent means the caller was paired and was never stored.
	PairOrEnqueue(ctx context.Context, e Entry) (opponent *Entry, err error)

	// Enqueue stores the entry without pairing. Used to return a claimed
	// opponent to the pool when match creation fails.
	Enqueue(ctx context.Context, e Entry) error

	// Cancel removes the player's entry. Removing an absent entry is not an
	// error.
	Cancel(ctx context.Context, playerID string) error
}
