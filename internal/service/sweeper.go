package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/metrics"
)

// SweepStats summarizes one maintenance pass.
type SweepStats struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Sweeper re-resolves catalog movies whose release date is unknown or
// still ahead, so announced dates flow into the ranking.
type Sweeper struct {
	movies     MovieStore
	reconciler *Reconciler
	log        *logrus.Logger
	now        func() time.Time
}

func NewSweeper(movies MovieStore, reconciler *Reconciler, log *logrus.Logger) *Sweeper {
	return &Sweeper{movies: movies, reconciler: reconciler, log: log, now: time.Now}
}

// Run performs one pass.  Failures on single movies are logged and
// counted; only a failure to list the candidates aborts the pass.
func (s *Sweeper) Run(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	stale, err := s.movies.ListStale(ctx, s.now().UTC())
	if err != nil {
		return stats, err
	}
	for _, m := range stale {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++
		if _, err := s.reconciler.Resolve(ctx, m.TMDBID); err != nil {
			stats.Failed++
			metrics.SweepMovies.WithLabelValues("failed").Inc()
			s.log.WithError(err).WithField("tmdb_id", m.TMDBID).Warn("sweep: movie not refreshed")
			continue
		}
		stats.Updated++
		metrics.SweepMovies.WithLabelValues("updated").Inc()
	}
	s.log.WithFields(logrus.Fields{
		"checked": stats.Checked,
		"updated": stats.Updated,
		"failed":  stats.Failed,
	}).Info("catalog sweep finished")
	return stats, ctx.Err()
}

// Start runs a pass every interval until ctx is done.  It blocks; call it
// in its own goroutine.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Error("catalog sweep failed")
			}
		}
	}
}
