package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SessionPruner interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Scheduler struct {
	cron      *cron.Cron
	sessions  SessionPruner
	pruneSpec string
	log       zerolog.Logger
}

func NewScheduler(sessions SessionPruner, pruneSpec string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:      c,
		sessions:  sessions,
		pruneSpec: pruneSpec,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.sessions == nil || s.pruneSpec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.pruneSpec, s.pruneSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		<-s.cron.Stop().Done()
		cancel()
	}()
	return func() {
		<-ctx.Done()
	}
}

func (s *Scheduler) pruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sessions.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("prune expired sessions failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired sessions pruned")
	}
}
