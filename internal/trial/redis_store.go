package trial

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	matchKeyPrefix  = "trial:match:"
	lockKeyPrefix   = "trial:lock:"
	phaseKeyPrefix  = "trial:phase:"
	playerKeyPrefix = "trial:player:"

	// lockTTL must outlive the slowest transition, which includes one
	// question-generation round trip.
	lockTTL = 30 * time.Second

	// matchTTL is a safety net well past the finished-match retention; the
	// sweeper deletes documents explicitly long before this fires.
	matchTTL = 6 * time.Hour
)

// unlockScript deletes the lock only when we still own it.
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisStore keeps match documents as JSON values with per-match SETNX locks,
// a phase index set per phase, and a player -> match pointer for the
// "active match for player" query.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a match store backed by Redis.
func NewRedisStore(client *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "trial_store").Logger(),
	}
}

func matchKey(id string) string        { return matchKeyPrefix + id }
func lockKey(id string) string         { return lockKeyPrefix + id }
func phaseKey(p Phase) string          { return phaseKeyPrefix + string(p) }
func playerKey(playerID string) string { return playerKeyPrefix + playerID }

// Lock acquires the per-match mutation lock.
func (s *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	key := lockKey(id)
	owner := uuid.NewString()

	acquired, err := s.client.SetNX(ctx, key, owner, lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil, ErrConflict
	}

	unlock := func() {
		if err := unlockScript.Run(context.WithoutCancel(ctx), s.client, []string{key}, owner).Err(); err != nil {
			s.logger.Warn().Err(err).Str("match_id", id).Msg("unlock failed")
		}
	}
	return unlock, nil
}

// Create persists a new match and its indexes.
func (s *RedisStore) Create(ctx context.Context, m *Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKey(m.ID), data, matchTTL)
		pipe.SAdd(ctx, phaseKey(m.Phase), m.ID)
		for _, pid := range m.PlayerIDs {
			pipe.Set(ctx, playerKey(pid), m.ID, matchTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// Get returns the current document.
func (s *RedisStore) Get(ctx context.Context, id string) (*Match, error) {
	data, err := s.client.Get(ctx, matchKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}

	var m Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal match: %w", err)
	}
	return &m, nil
}

// Update replaces the document under the caller's lock, bumping Version and
// moving the phase index when the phase changed.
func (s *RedisStore) Update(ctx context.Context, m *Match) error {
	prev, err := s.Get(ctx, m.ID)
	if err != nil {
		return err
	}

	m.Version = prev.Version + 1
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKey(m.ID), data, matchTTL)
		if prev.Phase != m.Phase {
			pipe.SMove(ctx, phaseKey(prev.Phase), phaseKey(m.Phase), m.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	return nil
}

// Delete removes the document and all its indexes.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err == ErrMatchNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, matchKey(id))
		pipe.SRem(ctx, phaseKey(m.Phase), id)
		for _, pid := range m.PlayerIDs {
			pipe.Del(ctx, playerKey(pid))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}

// FindByPlayer returns the active match containing the player.
func (s *RedisStore) FindByPlayer(ctx context.Context, playerID string) (*Match, error) {
	id, err := s.client.Get(ctx, playerKey(playerID)).Result()
	if err == redis.Nil {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by player: %w", err)
	}
	return s.Get(ctx, id)
}

// ListByPhase returns ids of all matches currently in the given phase.
func (s *RedisStore) ListByPhase(ctx context.Context, phase Phase) ([]string, error) {
	ids, err := s.client.SMembers(ctx, phaseKey(phase)).Result()
	if err != nil {
		return nil, fmt.Errorf("list by phase: %w", err)
	}
	return ids, nil
}
