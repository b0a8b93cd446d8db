package matchmaking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurukulapp/heavenly-trial/internal/trial"
)

// MatchCreator turns a pairing into a live match. Order matters: the waiter
// is the player who was already queued.
type MatchCreator interface {
	CreateMatch(ctx context.Context, waiter, arrival trial.Player) (*trial.Match, error)
}

// FindResult is the outcome of a FindMatch call. Exactly one of Match and
// Queued is set.
type FindResult struct {
	Match  *trial.Match
	Queued bool
}

// Service pairs searching players and creates matches.
type Service struct {
	queue   QueueStore
	creator MatchCreator
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(queue QueueStore, creator MatchCreator, logger zerolog.Logger) *Service {
	return &Service{
		queue:   queue,
		creator: creator,
		now:     time.Now,
		logger:  logger.With().Str("component", "matchmaking").Logger(),
	}
}

// FindMatch pairs the player with a waiting opponent, or enqueues them when
// the pool is empty. On pairing, the opponent (the earlier arrival) becomes
// players[0] of the created match.
func (s *Service) FindMatch(ctx context.Context, player trial.Player) (FindResult, error) {
	entry := Entry{
		PlayerID:    player.ID,
		DisplayName: player.DisplayName,
		AvatarURL:   player.AvatarURL,
		EnqueuedAt:  s.now(),
	}

	opponent, err := s.queue.PairOrEnqueue(ctx, entry)
	if err != nil {
		return FindResult{}, err
	}
	if opponent == nil {
		s.logger.Debug().Str("player_id", player.ID).Msg("player queued")
		return FindResult{Queued: true}, nil
	}

	waiter := trial.Player{
		ID:          opponent.PlayerID,
		DisplayName: opponent.DisplayName,
		AvatarURL:   opponent.AvatarURL,
	}

	m, err := s.creator.CreateMatch(ctx, waiter, player)
	if err != nil {
		// The opponent's entry was already claimed; put it back so they are
		// not silently dropped from the pool.
		if reErr := s.queue.Enqueue(ctx, *opponent); reErr != nil {
			s.logger.Error().Err(reErr).
				Str("player_id", opponent.PlayerID).
				Msg("re-enqueue claimed opponent")
		}
		return FindResult{}, fmt.Errorf("create match: %w", err)
	}

	s.logger.Info().
		Str("match_id", m.ID).
		Str("waiter", waiter.ID).
		Str("arrival", player.ID).
		Msg("players paired")
	return FindResult{Match: m}, nil
}

// CancelSearch removes the player from the waiting pool. Cancelling when
// not queued is a no-op.
func (s *Service) CancelSearch(ctx context.Context, playerID string) error {
	return s.queue.Cancel(ctx, playerID)
}
