package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultCacheTTL = 10 * time.Minute

// CachedSource checks a Redis pack cache before hitting the live generator.
// Cached packs are consumed on read (GETDEL) so two rounds on the same topic
// never receive the same question set. Cache errors degrade to a live call.
type CachedSource struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

var _ Source = (*CachedSource)(nil)

func NewCachedSource(source Source, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{
		source: source,
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "question_cache").Logger(),
	}
}

func (c *CachedSource) key(topic string, count int, difficulty string) string {
	return strings.Join([]string{
		"questionpack",
		strings.ToLower(topic),
		fmt.Sprint(count),
		difficulty,
	}, ":")
}

// Generate consumes a cached pack when present, otherwise calls the
// underlying source.
func (c *CachedSource) Generate(ctx context.Context, topic string, count int, difficulty string) ([]Question, error) {
	key := c.key(topic, count, difficulty)

	data, err := c.client.GetDel(ctx, key).Bytes()
	if err == nil {
		var pack []Question
		if err := json.Unmarshal(data, &pack); err == nil && ValidatePack(pack, count) == nil {
			return pack, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding corrupted cached pack")
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("pack cache read failed")
	}

	return c.source.Generate(ctx, topic, count, difficulty)
}

// Warm generates a pack and stores it for later consumption. Used by the
// prefetch worker for fallback topics; never overwrites an unconsumed pack.
func (c *CachedSource) Warm(ctx context.Context, topic string, count int, difficulty string) error {
	key := c.key(topic, count, difficulty)

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check cache: %w", err)
	}
	if exists > 0 {
		return nil
	}

	pack, err := c.source.Generate(ctx, topic, count, difficulty)
	if err != nil {
		return err
	}

	data, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("marshal pack: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
