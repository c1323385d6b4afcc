package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// SweepTarget is one table the sweeper purges. Rows are kept for Retention
// past their expiry.
type SweepTarget struct {
	Name      string
	Purger    domain.ExpiredPurger
	Retention time.Duration
}

// Sweeper periodically deletes expired durable rows. Redis expires its own
// keys; the relational store needs this.
type Sweeper struct {
	targets  []SweepTarget
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper
func NewSweeper(interval time.Duration, log *slog.Logger, targets ...SweepTarget) *Sweeper {
	return &Sweeper{
		targets:  targets,
		interval: interval,
		log:      log.With("component", "sweeper"),
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce purges every target and returns the rows removed per target
func (s *Sweeper) SweepOnce(ctx context.Context) map[string]int64 {
	removed := make(map[string]int64, len(s.targets))
	now := s.now()
	for _, t := range s.targets {
		n, err := t.Purger.DeleteExpired(ctx, now.Add(-t.Retention))
		if err != nil {
			s.log.ErrorContext(ctx, "sweep failed", "target", t.Name, "err", err)
			continue
		}
		removed[t.Name] = n
		if n > 0 {
			s.log.InfoContext(ctx, "swept expired rows", "target", t.Name, "rows", n)
		}
	}
	return removed
}
