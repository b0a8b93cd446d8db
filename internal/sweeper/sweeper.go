package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/gurukulapp/heavenly-trial/internal/metrics"
	"github.com/gurukulapp/heavenly-trial/internal/trial"
)

// Engine is the slice of the trial engine the sweeper drives. Deadline
// checks live in the engine; the sweeper only nominates candidates, so a
// forcing that loses a race with a player action is a harmless no-op.
type Engine interface {
	MatchesInPhase(ctx context.Context, phase trial.Phase) ([]string, error)
	ForceTopicDeadline(ctx context.Context, matchID string) (bool, error)
	ForceRoundDeadline(ctx context.Context, matchID string) (bool, error)
	CollectFinished(ctx context.Context, matchID string, archive func(*trial.Match) error) (bool, error)
}

// Archiver persists a finished match before it is deleted.
type Archiver interface {
	ArchiveMatch(ctx context.Context, m *trial.Match) error
}

// Sweeper periodically forces overdue phase transitions and collects
// expired finished matches. One failing match never blocks the rest of a
// sweep.
type Sweeper struct {
	engine   Engine
	archiver Archiver
	interval time.Duration
	logger   zerolog.Logger
	sched    gocron.Scheduler
}

func New(engine Engine, archiver Archiver, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		engine:   engine,
		archiver: archiver,
		interval: interval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start schedules the sweep loop. The context bounds each individual sweep,
// not the scheduler itself; call Stop to shut the loop down.
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.Sweep(ctx)
		}),
	)
	if err != nil {
		return err
	}
	sched.Start()
	s.sched = sched
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// Sweep runs one full pass over every phase. Exported so tests and
// operational tooling can trigger a pass directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	s.sweepPhase(ctx, trial.PhaseTopicSelection, metrics.ForcedTopicDeadline, s.engine.ForceTopicDeadline)
	s.sweepPhase(ctx, trial.PhaseRound1, metrics.ForcedRoundDeadline, s.engine.ForceRoundDeadline)
	s.sweepPhase(ctx, trial.PhaseRound2, metrics.ForcedRoundDeadline, s.engine.ForceRoundDeadline)
	s.sweepFinished(ctx)
}

func (s *Sweeper) sweepPhase(ctx context.Context, phase trial.Phase, kind string, force func(context.Context, string) (bool, error)) {
	ids, err := s.engine.MatchesInPhase(ctx, phase)
	if err != nil {
		s.logger.Error().Err(err).Str("phase", string(phase)).Msg("list matches")
		return
	}

	for _, id := range ids {
		forced, err := force(ctx, id)
		if err != nil {
			if errors.Is(err, trial.ErrConflict) {
				// Another instance or a player action holds the match lock.
				s.logger.Debug().Str("match_id", id).Msg("match locked, skipping")
				continue
			}
			s.logger.Error().Err(err).
				Str("match_id", id).
				Str("phase", string(phase)).
				Msg("force transition")
			continue
		}
		if forced {
			metrics.ForcedTransitions.WithLabelValues(kind).Inc()
			s.logger.Info().
				Str("match_id", id).
				Str("phase", string(phase)).
				Msg("forced overdue transition")
		}
	}
}

func (s *Sweeper) sweepFinished(ctx context.Context) {
	ids, err := s.engine.MatchesInPhase(ctx, trial.PhaseFinished)
	if err != nil {
		s.logger.Error().Err(err).Msg("list finished matches")
		return
	}

	var archive func(*trial.Match) error
	if s.archiver != nil {
		archive = func(m *trial.Match) error {
			return s.archiver.ArchiveMatch(ctx, m)
		}
	}

	for _, id := range ids {
		collected, err := s.engine.CollectFinished(ctx, id, archive)
		if err != nil {
			if errors.Is(err, trial.ErrConflict) {
				continue
			}
			s.logger.Error().Err(err).Str("match_id", id).Msg("collect finished match")
			continue
		}
		if collected {
			metrics.ForcedTransitions.WithLabelValues(metrics.ForcedFinishedGC).Inc()
			s.logger.Info().Str("match_id", id).Msg("finished match collected")
		}
	}
}
