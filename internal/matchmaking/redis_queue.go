package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const waitingKey = "matchmaking:waiting"

// pairScript scans the waiting pool for an entry that is not the caller's.
// It removes and returns the first one found; otherwise it stores the
// caller. The scan, delete and store happen in one script so two players
// arriving at the same time produce exactly one pairing and no orphaned
// entries.
var pairScript = redis.NewScript(`
local fields = redis.call('HKEYS', KEYS[1])
for i = 1, #fields do
  if fields[i] ~= ARGV[1] then
    local payload = redis.call('HGET', KEYS[1], fields[i])
    redis.call('HDEL', KEYS[1], fields[i])
    return {'paired', payload}
  end
end
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
  return {'exists'}
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return {'queued'}
`)

// RedisQueue is the QueueStore backed by a single Redis hash, shared by all
// orchestrator instances.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) PairOrEnqueue(ctx context.Context, e Entry) (*Entry, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal queue entry: %w", err)
	}

	res, err := pairScript.Run(ctx, q.client, []string{waitingKey}, e.PlayerID, payload).Result()
	if err != nil {
		return nil, fmt.Errorf("pair or enqueue: %w", err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("pair or enqueue: unexpected reply %T", res)
	}

	switch parts[0] {
	case "queued":
		return nil, nil
	case "exists":
		return nil, ErrAlreadyQueued
	case "paired":
		raw, ok := parts[1].(string)
		if !ok {
			return nil, fmt.Errorf("pair or enqueue: unexpected payload %T", parts[1])
		}
		var opp Entry
		if err := json.Unmarshal([]byte(raw), &opp); err != nil {
			return nil, fmt.Errorf("unmarshal queue entry: %w", err)
		}
		return &opp, nil
	default:
		return nil, fmt.Errorf("pair or enqueue: unexpected status %v", parts[0])
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	if err := q.client.HSet(ctx, waitingKey, e.PlayerID, payload).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (q *RedisQueue) Cancel(ctx context.Context, playerID string) error {
	if err := q.client.HDel(ctx, waitingKey, playerID).Err(); err != nil {
		return fmt.Errorf("cancel search: %w", err)
	}
	return nil
}
