package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gurukulapp/heavenly-trial/internal/trial"
)

// Record is an archived duel as stored in Postgres.
type Record struct {
	MatchID      string
	Player0ID    string
	Player0Name  string
	Player0Score int
	Player0Topic string
	Player1ID    string
	Player1Name  string
	Player1Score int
	Player1Topic string
	WinnerID     string
	CreatedAt    time.Time
	FinishedAt   time.Time
	ArchivedAt   time.Time
}

const insertArchiveSQL = `
INSERT INTO match_archive (
	match_id,
	player0_id, player0_name, player0_score, player0_topic,
	player1_id, player1_name, player1_score, player1_topic,
	winner_id, answers, created_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (match_id) DO NOTHING`

// Repository writes finished duels to the match_archive table. Inserts are
// idempotent on match id so a sweep retried after a partial failure never
// duplicates rows.
type Repository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewRepository(pool *pgxpool.Pool, logger zerolog.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

// ArchiveMatch persists the final result of a finished duel.
func (r *Repository) ArchiveMatch(ctx context.Context, m *trial.Match) error {
	if m.Phase != trial.PhaseFinished {
		return fmt.Errorf("archive: match %s is %s, not finished", m.ID, m.Phase)
	}

	answers, err := json.Marshal(answerLog(m))
	if err != nil {
		return fmt.Errorf("archive: marshal answers: %w", err)
	}

	finishedAt := m.PhaseEnteredAt[trial.PhaseFinished]
	tag, err := r.pool.Exec(ctx, insertArchiveSQL,
		m.ID,
		m.Players[0].ID, m.Players[0].DisplayName, m.Players[0].Score, m.Players[0].Topic,
		m.Players[1].ID, m.Players[1].DisplayName, m.Players[1].Score, m.Players[1].Topic,
		winnerID(m), answers, m.CreatedAt, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: insert match %s: %w", m.ID, err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Debug().Str("match_id", m.ID).Msg("match already archived")
	} else {
		r.logger.Info().Str("match_id", m.ID).Msg("match archived")
	}
	return nil
}

// GetRecord fetches an archived duel by match id.
func (r *Repository) GetRecord(ctx context.Context, matchID string) (*Record, error) {
	const q = `
SELECT match_id,
	player0_id, player0_name, player0_score, player0_topic,
	player1_id, player1_name, player1_score, player1_topic,
	COALESCE(winner_id, ''), created_at, finished_at, archived_at
FROM match_archive WHERE match_id = $1`

	var rec Record
	err := r.pool.QueryRow(ctx, q, matchID).Scan(
		&rec.MatchID,
		&rec.Player0ID, &rec.Player0Name, &rec.Player0Score, &rec.Player0Topic,
		&rec.Player1ID, &rec.Player1Name, &rec.Player1Score, &rec.Player1Topic,
		&rec.WinnerID, &rec.CreatedAt, &rec.FinishedAt, &rec.ArchivedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, trial.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get match %s: %w", matchID, err)
	}
	return &rec, nil
}

// winnerID returns the higher-scoring player's id. The winner column stays
// NULL for draws.
func winnerID(m *trial.Match) *string {
	switch {
	case m.Players[0].Score > m.Players[1].Score:
		return &m.Players[0].ID
	case m.Players[1].Score > m.Players[0].Score:
		return &m.Players[1].ID
	default:
		return nil
	}
}

type loggedAnswer struct {
	PlayerID string         `json:"player_id"`
	Answers  map[int]string `json:"answers"`
}

func answerLog(m *trial.Match) []loggedAnswer {
	out := make([]loggedAnswer, 0, len(m.Players))
	for i := range m.Players {
		out = append(out, loggedAnswer{
			PlayerID: m.Players[i].ID,
			Answers:  m.Players[i].Answers,
		})
	}
	return out
}
