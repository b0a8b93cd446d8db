package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"heavenly-trial"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres  Postgres
	Redis     Redis
	Security  Security
	Trial     Trial
	Generator Generator
	CORS      CORS
}

// Postgres captures connection info for the archive database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds the match document store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
}

// Trial groups duel gameplay deadlines and sizes.
type Trial struct {
	QuestionsPerRound    int           `env:"TRIAL_QUESTIONS_PER_ROUND" envDefault:"5"`
	PointsPerCorrect     int           `env:"TRIAL_POINTS_PER_CORRECT" envDefault:"10"`
	Difficulty           string        `env:"TRIAL_DIFFICULTY" envDefault:"medium"`
	TopicSelectionWindow time.Duration `env:"TRIAL_TOPIC_SELECTION_SECONDS" envDefault:"30s"`
	RoundDuration        time.Duration `env:"TRIAL_ROUND_SECONDS" envDefault:"120s"`
	RoundGrace           time.Duration `env:"TRIAL_ROUND_GRACE_SECONDS" envDefault:"5s"`
	FinishedRetention    time.Duration `env:"TRIAL_FINISHED_RETENTION" envDefault:"1h"`
	SweepInterval        time.Duration `env:"TRIAL_SWEEP_INTERVAL" envDefault:"60s"`
	FallbackTopics       []string      `env:"TRIAL_FALLBACK_TOPICS" envSeparator:"," envDefault:"History,Science,Math,Literature,Geography,Art"`
}

// Generator configures the external question generator service.
type Generator struct {
	URL         string        `env:"GENERATOR_URL,notEmpty"`
	APIKey      string        `env:"GENERATOR_API_KEY"`
	HTTPTimeout time.Duration `env:"GENERATOR_HTTP_TIMEOUT" envDefault:"10s"`
	CacheTTL    time.Duration `env:"GENERATOR_CACHE_TTL" envDefault:"10m"`
	Prefetch    bool          `env:"GENERATOR_PREFETCH" envDefault:"true"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
