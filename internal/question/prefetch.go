package question

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PrefetchWorker pre-warms packs for the fallback topic list so a
// deadline-forced transition doesn't stall on the live generator.
type PrefetchWorker struct {
	cache      *CachedSource
	picker     *TopicPicker
	count      int
	difficulty string
	interval   time.Duration
	timeout    time.Duration
	logger     zerolog.Logger
}

func NewPrefetchWorker(cache *CachedSource, picker *TopicPicker, count int, difficulty string, interval time.Duration, logger zerolog.Logger) *PrefetchWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PrefetchWorker{
		cache:      cache,
		picker:     picker,
		count:      count,
		difficulty: difficulty,
		interval:   interval,
		timeout:    30 * time.Second,
		logger:     logger.With().Str("component", "question_prefetch").Logger(),
	}
}

// Run blocks until context cancellation.
func (w *PrefetchWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PrefetchWorker) tick(ctx context.Context) {
	for _, topic := range w.picker.Topics() {
		warmCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.cache.Warm(warmCtx, topic, w.count, w.difficulty)
		cancel()
		if err != nil {
			w.logger.Warn().Err(err).Str("topic", topic).Msg("prefetch failed")
		}
	}
}
