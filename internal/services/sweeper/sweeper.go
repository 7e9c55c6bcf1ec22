// Package sweeper runs the periodic subscription-expiry pass.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/byonco/webgate/internal/lib/sl"
)

// Repository is the storage surface the sweep touches.
type Repository interface {
	ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper flips lapsed subscriptions inactive on a schedule. The flag in
// the database is advisory (guards derive activity from expires_at), so
// the sweep only keeps reporting and listings honest.
type Sweeper struct {
	repo Repository
	log  *slog.Logger
	cron *cron.Cron
}

// New creates a Sweeper.
func New(repo Repository, log *slog.Logger) *Sweeper {
	return &Sweeper{
		repo: repo,
		log:  log,
		cron: cron.New(),
	}
}

// Start registers the hourly sweep and launches the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("@hourly", s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	const op = "sweeper.sweep"
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.repo.ExpireLapsedSubscriptions(ctx, time.Now())
	if err != nil {
		s.log.Error("expiry sweep failed", slog.String("op", op), sl.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("expired lapsed subscriptions", slog.String("op", op), slog.Int64("count", n))
	}
}
