package trial

import "context"

// Store persists match documents. Implementations must make Lock exclusive
// per match id: Update and Delete are only called while holding the lock, so
// a single holder performs read-validate-write without interleaving. Lock
// contention is reported as ErrConflict.
type Store interface {
	// Create persists a new match and indexes it by phase and players.
	Create(ctx context.Context, m *Match) error

	// Get returns the current document, or ErrMatchNotFound.
	Get(ctx context.Context, id string) (*Match, error)

	// Update replaces the document, bumping Version and moving phase
	// indexes. Caller must hold the match lock.
	Update(ctx context.Context, m *Match) error

	// Delete removes the document and all its indexes. Caller must hold the
	// match lock.
	Delete(ctx context.Context, id string) error

	// Lock acquires the per-match mutation lock, returning an unlock
	// function. Returns ErrConflict when another writer holds it.
	Lock(ctx context.Context, id string) (func(), error)

	// FindByPlayer returns the active match containing the player, or
	// ErrMatchNotFound.
	FindByPlayer(ctx context.Context, playerID string) (*Match, error)

	// ListByPhase returns ids of all matches currently in the given phase.
	ListByPhase(ctx context.Context, phase Phase) ([]string, error)
}
