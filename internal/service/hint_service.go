package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/metrics"
	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/queue"
	"github.com/iliyamo/sneak-radar/internal/ranking"
	"github.com/iliyamo/sneak-radar/internal/repository"
)

// staleYears is how far a movie's release may lie before the report date
// for a new hint to still be accepted.
const staleYears = 2

const dateLayout = "2006-01-02"

// SubmitRequest is one hint submission.  Exactly one of MovieID and
// MovieRef is expected; MovieRef is an IMDb id or imdb.com title URL.
type SubmitRequest struct {
	CinemaID   uint64
	ReportDate string // YYYY-MM-DD
	MovieID    uint64
	MovieRef   string
}

// HintService accepts hints and serves the hint and guess listings.
type HintService struct {
	cinemas    CinemaStore
	movies     MovieStore
	hints      HintStore
	reconciler *Reconciler
	engine     *ranking.Engine
	events     EventPublisher
	log        *logrus.Logger
	now        func() time.Time
}

// NewHintService wires a HintService.  A nil events publisher drops
// events.
func NewHintService(cinemas CinemaStore, movies MovieStore, hints HintStore, reconciler *Reconciler,
	engine *ranking.Engine, events EventPublisher, log *logrus.Logger) *HintService {
	if events == nil {
		events = NopPublisher{}
	}
	return &HintService{
		cinemas:    cinemas,
		movies:     movies,
		hints:      hints,
		reconciler: reconciler,
		engine:     engine,
		events:     events,
		log:        log,
		now:        time.Now,
	}
}

// Submit validates and records a hint.  Rejections are returned as the
// sentinel errors of this package (see Reason); any other error is an
// internal failure.
//
// The newness check, the duplicate check, the guess rank and the insert
// share one snapshot, so the recorded guess rank never includes the hint
// itself.  A movie without any stored hint gets the new sentinel and must
// have been released within staleYears of the report date.
func (s *HintService) Submit(ctx context.Context, req SubmitRequest) (*model.Hint, error) {
	h, err := s.submit(ctx, req)
	outcome := "recorded"
	if err != nil {
		if outcome = Reason(err); outcome == "" {
			outcome = "error"
		}
	}
	metrics.HintSubmissions.WithLabelValues(outcome).Inc()

	fields := logrus.Fields{"cinema_id": req.CinemaID, "movie_id": req.MovieID, "report_date": req.ReportDate, "outcome": outcome}
	switch outcome {
	case "recorded":
		s.log.WithFields(fields).WithField("guess_rank", h.GuessRank.Label()).Info("hint recorded")
		s.publish(ctx, queue.EventHintRecorded, h)
	case "error":
		s.log.WithFields(fields).WithError(err).Error("hint submission failed")
	default:
		s.log.WithFields(fields).Info("hint rejected")
	}
	return h, err
}

func (s *HintService) submit(ctx context.Context, req SubmitRequest) (*model.Hint, error) {
	if _, err := s.cinemas.GetByID(ctx, req.CinemaID); err != nil {
		if errors.Is(err, repository.ErrCinemaNotFound) {
			return nil, ErrUnknownCinema
		}
		return nil, fmt.Errorf("load cinema %d: %w", req.CinemaID, err)
	}

	day, err := ParseReportDate(req.ReportDate)
	if err != nil {
		return nil, err
	}

	movie, err := s.resolveMovie(ctx, req)
	if err != nil {
		return nil, err
	}

	hint := &model.Hint{CinemaID: req.CinemaID, MovieID: movie.TMDBID, ReportDate: day}
	err = s.hints.Snapshot(ctx, func(tx HintTx) error {
		// A movie is new until its first hint is stored, however it got
		// into the catalog (earlier rejected submission, sweep, admin).
		hinted, err := tx.MovieHinted(ctx, movie.TMDBID)
		if err != nil {
			return err
		}
		exists, err := tx.Exists(ctx, req.CinemaID, movie.TMDBID, day)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRecorded
		}
		if !hinted {
			if tooOld(movie, day) {
				return ErrMovieTooOld
			}
			hint.GuessRank = model.GuessRankNew
		} else {
			guesses, err := s.engine.WithSource(tx).GuessesBefore(ctx, req.CinemaID, day)
			if err != nil {
				return fmt.Errorf("rank before submission: %w", err)
			}
			hint.GuessRank = ranking.PositionOf(guesses, movie.TMDBID)
		}
		if err := tx.Create(ctx, hint); err != nil {
			if errors.Is(err, repository.ErrHintExists) {
				return ErrAlreadyRecorded
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hint, nil
}

// resolveMovie returns the catalog movie for the request, resolving it
// through the provider when the catalog does not know it yet.
func (s *HintService) resolveMovie(ctx context.Context, req SubmitRequest) (*model.Movie, error) {
	id := req.MovieID
	if ref := strings.TrimSpace(req.MovieRef); ref != "" {
		imdbID, ok := ExtractIMDbID(ref)
		if !ok {
			return nil, ErrMalformedMovie
		}
		m, err := s.movies.GetByIMDbID(ctx, imdbID)
		switch {
		case err == nil:
			return m, nil
		case !errors.Is(err, repository.ErrMovieNotFound):
			return nil, fmt.Errorf("load movie %s: %w", imdbID, err)
		}
		if id, err = s.reconciler.LookupIMDb(ctx, imdbID); err != nil {
			return nil, unresolvable(err)
		}
	}
	if id == 0 {
		return nil, ErrMalformedMovie
	}

	m, err := s.movies.GetByID(ctx, id)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, repository.ErrMovieNotFound) {
		return nil, fmt.Errorf("load movie %d: %w", id, err)
	}
	m, err = s.reconciler.Resolve(ctx, id)
	if err != nil {
		return nil, unresolvable(err)
	}
	return m, nil
}

// tooOld reports whether the movie was released more than staleYears
// before day.  An unknown release date is never too old.
func tooOld(m *model.Movie, day time.Time) bool {
	return m.ReleaseDate != nil && model.DateOnly(*m.ReleaseDate).Before(day.AddDate(-staleYears, 0, 0))
}

func unresolvable(err error) error {
	if errors.Is(err, ErrMovieUnavailable) {
		return fmt.Errorf("%w: %v", ErrMovieUnresolvable, err)
	}
	return err
}

// ParseReportDate parses a YYYY-MM-DD calendar date.
func ParseReportDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrMalformedDate
	}
	return t, nil
}

// Guesses returns the live ranking for a cinema.
func (s *HintService) Guesses(ctx context.Context, cinemaID uint64) ([]ranking.Guess, error) {
	if _, err := s.cinemas.GetByID(ctx, cinemaID); err != nil {
		if errors.Is(err, repository.ErrCinemaNotFound) {
			return nil, ErrUnknownCinema
		}
		return nil, err
	}
	return s.engine.Guesses(ctx, cinemaID)
}

// ListHints returns a cinema's hints inside the recency window, newest
// first, higher scores first within a day.
func (s *HintService) ListHints(ctx context.Context, cinemaID uint64) ([]model.HintWithMovie, error) {
	if _, err := s.cinemas.GetByID(ctx, cinemaID); err != nil {
		if errors.Is(err, repository.ErrCinemaNotFound) {
			return nil, ErrUnknownCinema
		}
		return nil, err
	}
	from := model.DateOnly(s.now().UTC()).AddDate(0, 0, -s.engine.Policy().WindowDays)
	return s.hints.ListByCinema(ctx, cinemaID, from)
}

func (s *HintService) publish(ctx context.Context, typ string, h *model.Hint) {
	publishHintEvent(ctx, s.events, s.log, typ, h)
}

// publishHintEvent delivers an event without failing the caller.  The
// request context may already be done when the response is written, so
// delivery gets its own deadline.
func publishHintEvent(ctx context.Context, pub EventPublisher, log *logrus.Logger, typ string, h *model.Hint) {
	ev := queue.HintEvent{
		Type:       typ,
		HintID:     h.ID,
		CinemaID:   h.CinemaID,
		MovieID:    h.MovieID,
		Score:      h.Score,
		ReportDate: h.ReportDate.Format(dateLayout),
		GuessRank:  h.GuessRank.Label(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	result := "ok"
	if err := pub.Publish(pctx, ev); err != nil {
		result = "error"
		log.WithError(err).WithField("type", typ).Warn("publish hint event failed")
	}
	metrics.EventsPublished.WithLabelValues(typ, result).Inc()
}
