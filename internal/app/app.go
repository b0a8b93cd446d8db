package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gurukulapp/heavenly-trial/internal/archive"
	"github.com/gurukulapp/heavenly-trial/internal/auth"
	"github.com/gurukulapp/heavenly-trial/internal/config"
	"github.com/gurukulapp/heavenly-trial/internal/gateway"
	"github.com/gurukulapp/heavenly-trial/internal/logging"
	"github.com/gurukulapp/heavenly-trial/internal/matchmaking"
	"github.com/gurukulapp/heavenly-trial/internal/question"
	"github.com/gurukulapp/heavenly-trial/internal/question/ai"
	"github.com/gurukulapp/heavenly-trial/internal/server"
	"github.com/gurukulapp/heavenly-trial/internal/sweeper"
	"github.com/gurukulapp/heavenly-trial/internal/trial"
	ws "github.com/gurukulapp/heavenly-trial/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server)
// and the duel orchestration services.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	sweeper   *sweeper.Sweeper
	prefetch  *question.PrefetchWorker
	bgCancels []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis and the duel services.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	tokens := auth.NewManager(auth.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Name,
	})

	// Question pipeline: AI generator fronted by a consume-once Redis cache.
	generator := ai.NewGenerator(ai.Config{
		GeneratorURL: cfg.Generator.URL,
		GeneratorKey: cfg.Generator.APIKey,
		Timeout:      cfg.Generator.HTTPTimeout,
	}, logger)
	source := question.NewCachedSource(generator, redisClient, cfg.Generator.CacheTTL, logger)
	picker := question.NewTopicPicker(cfg.Trial.FallbackTopics, nil)

	rules := trial.Rules{
		QuestionsPerRound:    cfg.Trial.QuestionsPerRound,
		PointsPerCorrect:     cfg.Trial.PointsPerCorrect,
		Difficulty:           cfg.Trial.Difficulty,
		TopicSelectionWindow: cfg.Trial.TopicSelectionWindow,
		RoundDuration:        cfg.Trial.RoundDuration,
		RoundGrace:           cfg.Trial.RoundGrace,
		FinishedRetention:    cfg.Trial.FinishedRetention,
	}

	store := trial.NewRedisStore(redisClient, logger)
	engine := trial.NewEngine(store, source, picker, rules, logger, trial.EngineOptions{})

	queue := matchmaking.NewRedisQueue(redisClient)
	matchmaker := matchmaking.NewService(queue, engine, logger)

	wsHub := ws.NewHub(logger)
	handler := gateway.NewHandler(engine, matchmaker, wsHub, tokens, logger)
	engine.SetObserver(handler)

	archiveRepo := archive.NewRepository(pool, logger)
	sweep := sweeper.New(engine, archiveRepo, cfg.Trial.SweepInterval, logger)

	var prefetch *question.PrefetchWorker
	if cfg.Generator.Prefetch {
		prefetch = question.NewPrefetchWorker(source, picker, cfg.Trial.QuestionsPerRound, cfg.Trial.Difficulty, 0, logger)
	}

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, handler.HandleWebSocket)

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		redis:     redisClient,
		http:      apiServer,
		sweeper:   sweep,
		prefetch:  prefetch,
		bgCancels: make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if err := a.sweeper.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("sweeper shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	if err := a.sweeper.Start(bgCtx); err != nil {
		a.logger.Error().Err(err).Msg("sweeper failed to start")
	}

	if a.prefetch != nil {
		pfCtx, pfCancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, pfCancel)
		go func() {
			if err := a.prefetch.Run(pfCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("question prefetch worker stopped")
			}
		}()
	}
}
