package ranking

import (
	"context"
	"time"

	"github.com/iliyamo/sneak-radar/internal/metrics"
)

// EvidenceSource loads the raw inputs of a ranking.
type EvidenceSource interface {
	// Evidence returns hints with a non-negative score that fall into the
	// query window and whose movie is released after q.AsOf, ordered by
	// report date and hint id.
	Evidence(ctx context.Context, q Query) ([]Evidence, error)
	// ReportedMovies returns the ids of all movies ever hinted at cinemaID.
	ReportedMovies(ctx context.Context, cinemaID uint64) (map[uint64]struct{}, error)
}

// Engine ranks candidates for a cinema from an EvidenceSource.
type Engine struct {
	src    EvidenceSource
	policy Policy
	now    func() time.Time
}

// NewEngine builds an Engine.  A zero Limit or WindowDays in policy falls
// back to the defaults.
func NewEngine(src EvidenceSource, policy Policy) *Engine {
	def := DefaultPolicy()
	if policy.WindowDays <= 0 {
		policy.WindowDays = def.WindowDays
	}
	if policy.Limit <= 0 {
		policy.Limit = def.Limit
	}
	return &Engine{src: src, policy: policy, now: time.Now}
}

// WithClock replaces the clock used for "today".  Tests use it to pin the
// evaluation date.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// WithSource returns a copy of the engine reading from src, used to rank
// inside a transaction snapshot.
func (e *Engine) WithSource(src EvidenceSource) *Engine {
	cp := *e
	cp.src = src
	return &cp
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy { return e.policy }

// Guesses ranks the next sneak candidates for cinemaID as of today.
func (e *Engine) Guesses(ctx context.Context, cinemaID uint64) ([]Guess, error) {
	q := LiveQuery(cinemaID, e.now().UTC(), e.policy.WindowDays)
	return e.run(ctx, "live", q)
}

// GuessesBefore ranks candidates as they stood right before a hint for
// reportDate was submitted at cinemaID.
func (e *Engine) GuessesBefore(ctx context.Context, cinemaID uint64, reportDate time.Time) ([]Guess, error) {
	q := PriorQuery(cinemaID, reportDate, e.policy.WindowDays)
	return e.run(ctx, "prior", q)
}

func (e *Engine) run(ctx context.Context, mode string, q Query) ([]Guess, error) {
	start := time.Now()
	defer func() { metrics.RankingDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds()) }()

	reported, err := e.src.ReportedMovies(ctx, q.CinemaID)
	if err != nil {
		return nil, err
	}
	evidence, err := e.src.Evidence(ctx, q)
	if err != nil {
		return nil, err
	}
	return Rank(q, evidence, reported, e.policy), nil
}
