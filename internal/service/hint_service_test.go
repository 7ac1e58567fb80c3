package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/queue"
	"github.com/iliyamo/sneak-radar/internal/ranking"
	"github.com/iliyamo/sneak-radar/internal/tmdb"
)

type hintFixture struct {
	svc      *HintService
	movies   *fakeMovies
	hints    *fakeHints
	provider *fakeProvider
	events   *recordingPublisher
}

func newHintFixture(t *testing.T, catalog ...model.Movie) *hintFixture {
	t.Helper()
	movies := newFakeMovies(catalog...)
	hints := newFakeHints(movies)
	provider := &fakeProvider{movies: map[uint64]*tmdb.Movie{}, imdb: map[string]uint64{}}
	events := &recordingPublisher{}
	log := quietLogger()
	rec := NewReconciler(movies, provider, "DE", time.Second, log)
	engine := ranking.NewEngine(hints, ranking.DefaultPolicy())
	cinemas := fakeCinemas{1: {ID: 1, CityID: 1, Name: "Astor"}, 2: {ID: 2, CityID: 1, Name: "Zoo"}, 3: {ID: 3, CityID: 2, Name: "Metropol"}}
	svc := NewHintService(cinemas, movies, hints, rec, engine, events, log)
	svc.now = func() time.Time { return day("2024-06-01") }
	return &hintFixture{svc: svc, movies: movies, hints: hints, provider: provider, events: events}
}

func catalogMovie(id uint64, name, release string) model.Movie {
	return model.Movie{TMDBID: id, Name: name, ReleaseDate: dayPtr(release)}
}

func TestSubmitNewMovieGetsNewSentinel(t *testing.T) {
	f := newHintFixture(t)
	f.provider.movies[42] = providerMovie(42, "Sneaky", "2024-07-01")

	h, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 42})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.GuessRank != model.GuessRankNew {
		t.Fatalf("guess rank = %v, want new", h.GuessRank)
	}
	if h.Score != 0 || h.ID == 0 || h.MovieID != 42 {
		t.Fatalf("hint = %+v", h)
	}
	if m, err := f.movies.GetByID(context.Background(), 42); err != nil || m.Name != "Sneaky" {
		t.Fatalf("movie not cataloged: %+v, %v", m, err)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != queue.EventHintRecorded || f.events.events[0].GuessRank != "new" {
		t.Fatalf("events = %+v", f.events.events)
	}
}

func TestSubmitSameTripleTwiceKeepsOneHint(t *testing.T) {
	f := newHintFixture(t)
	f.provider.movies[42] = providerMovie(42, "Sneaky", "2024-07-01")
	req := SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 42}

	if _, err := f.svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := f.svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrAlreadyRecorded) || Reason(err) != "already_recorded" {
		t.Fatalf("second Submit err = %v", err)
	}
	if n := f.hints.count(); n != 1 {
		t.Fatalf("stored %d hints, want 1", n)
	}
	if got := f.provider.calls; got != 1 {
		t.Fatalf("provider called %d times, known movies must not be re-fetched", got)
	}
}

func TestSubmitValidationOrder(t *testing.T) {
	cases := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{"unknown cinema wins over bad date", SubmitRequest{CinemaID: 99, ReportDate: "nope", MovieID: 42}, ErrUnknownCinema},
		{"malformed date", SubmitRequest{CinemaID: 1, ReportDate: "01-06-2024", MovieID: 42}, ErrMalformedDate},
		{"impossible date", SubmitRequest{CinemaID: 1, ReportDate: "2024-02-30", MovieID: 42}, ErrMalformedDate},
		{"no movie", SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01"}, ErrMalformedMovie},
		{"not an imdb url", SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieRef: "https://example.com/title/tt1234567/"}, ErrMalformedMovie},
		{"provider cannot resolve", SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 7}, ErrMovieUnresolvable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHintFixture(t)
			if _, err := f.svc.Submit(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if f.hints.count() != 0 {
				t.Fatalf("rejected submission stored a hint")
			}
			if len(f.events.events) != 0 {
				t.Fatalf("rejected submission published %+v", f.events.events)
			}
		})
	}
}

func TestSubmitProviderFailureIsUnresolvable(t *testing.T) {
	f := newHintFixture(t)
	f.provider.err = errBoom
	_, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 42})
	if Reason(err) != "movie_unresolvable" {
		t.Fatalf("err = %v", err)
	}
}

func TestSubmitMovieTooOld(t *testing.T) {
	f := newHintFixture(t)
	f.provider.movies[42] = providerMovie(42, "Classic", "2021-05-01")
	_, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 42})
	if !errors.Is(err, ErrMovieTooOld) {
		t.Fatalf("err = %v, want ErrMovieTooOld", err)
	}
	if f.hints.count() != 0 {
		t.Fatalf("too old movie stored a hint")
	}
}

func TestSubmitTooOldStaysRejectedOnRetry(t *testing.T) {
	f := newHintFixture(t)
	f.provider.movies[7] = providerMovie(7, "Classic", "2020-01-01")
	req := SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 7}

	for i := 0; i < 2; i++ {
		if _, err := f.svc.Submit(context.Background(), req); !errors.Is(err, ErrMovieTooOld) {
			t.Fatalf("attempt %d: err = %v, want ErrMovieTooOld", i, err)
		}
	}
	if f.hints.count() != 0 {
		t.Fatalf("too old movie stored a hint on retry")
	}
}

func TestFirstHintOfCatalogedMovieIsNew(t *testing.T) {
	f := newHintFixture(t)
	f.provider.movies[8] = providerMovie(8, "Refreshed", "2024-07-01")
	// Cataloged without any hint, as an admin refresh or the sweep does.
	if _, err := f.svc.reconciler.Resolve(context.Background(), 8); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	h, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 8})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.GuessRank != model.GuessRankNew {
		t.Fatalf("guess rank = %v, want new", h.GuessRank)
	}

	h, err = f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 2, ReportDate: "2024-06-01", MovieID: 8})
	if err != nil {
		t.Fatalf("second cinema Submit: %v", err)
	}
	if h.GuessRank == model.GuessRankNew {
		t.Fatalf("second hint of a movie must not be new")
	}
}

func TestConcurrentFirstHintsHaveOneNew(t *testing.T) {
	f := newHintFixture(t, catalogMovie(9, "Nine", "2024-07-01"))

	var wg sync.WaitGroup
	ranks := make([]model.GuessRank, 3)
	errs := make([]error, 3)
	for i := range ranks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: uint64(i + 1), ReportDate: "2024-06-01", MovieID: 9})
			errs[i] = err
			if err == nil {
				ranks[i] = h.GuessRank
			}
		}(i)
	}
	wg.Wait()

	news := 0
	for i, r := range ranks {
		if errs[i] != nil {
			t.Fatalf("cinema %d: %v", i+1, errs[i])
		}
		if r == model.GuessRankNew {
			news++
		}
	}
	if news != 1 {
		t.Fatalf("%d hints tagged new, want exactly 1: %v", news, ranks)
	}
}

func TestSubmitWithinTwoYearsIsAccepted(t *testing.T) {
	f := newHintFixture(t)
	f.provider.movies[42] = providerMovie(42, "Rerun", "2022-06-01")
	if _, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 42}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestSubmitFreezesPriorRank(t *testing.T) {
	f := newHintFixture(t,
		catalogMovie(10, "Ten", "2024-07-01"),
		catalogMovie(11, "Eleven", "2024-07-01"),
		catalogMovie(12, "Twelve", "2024-07-01"),
	)
	f.hints.seed(2, 10, "2024-05-20", 0)
	f.hints.seed(2, 11, "2024-05-30", 0)
	f.hints.seed(3, 11, "2024-05-29", 0)
	// Same day evidence is not prior evidence.
	f.hints.seed(2, 12, "2024-06-01", 5)

	cases := []struct {
		movie uint64
		want  model.GuessRank
	}{
		// Eleven has more and fresher sightings than Ten.
		{10, model.RankedAt(2)},
		// Ten is now reported by cinema 1 and leaves its ranking.
		{11, model.RankedAt(1)},
		{12, model.GuessRankNotInTop},
	}
	for _, tc := range cases {
		h, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: tc.movie})
		if err != nil {
			t.Fatalf("Submit movie %d: %v", tc.movie, err)
		}
		if h.GuessRank != tc.want {
			t.Fatalf("movie %d guess rank = %v, want %v", tc.movie, h.GuessRank, tc.want)
		}
	}
}

func TestSubmitByIMDbURL(t *testing.T) {
	f := newHintFixture(t)
	f.provider.movies[42] = providerMovie(42, "Sneaky", "2024-07-01")
	f.provider.movies[42].IMDbID = "tt1234567"
	f.provider.imdb["tt1234567"] = 42

	req := SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieRef: "https://www.imdb.com/title/tt1234567/"}
	h, err := f.svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.MovieID != 42 || h.GuessRank != model.GuessRankNew {
		t.Fatalf("hint = %+v", h)
	}
	// Known IMDb id resolves from the catalog.
	req.CinemaID = 2
	h, err = f.svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if h.GuessRank == model.GuessRankNew {
		t.Fatalf("cataloged movie must not get the new sentinel")
	}
}

func TestGuessesNeverListReportedMovies(t *testing.T) {
	f := newHintFixture(t,
		catalogMovie(10, "Ten", "2024-07-01"),
		catalogMovie(11, "Eleven", "2024-07-01"),
	)
	f.hints.seed(2, 10, "2024-05-25", 0)
	f.hints.seed(2, 11, "2024-05-25", 0)
	f.hints.seed(1, 10, "2024-04-01", 0)

	eng := ranking.NewEngine(f.hints, ranking.DefaultPolicy()).WithClock(func() time.Time { return day("2024-06-01") })
	f.svc.engine = eng
	got, err := f.svc.Guesses(context.Background(), 1)
	if err != nil {
		t.Fatalf("Guesses: %v", err)
	}
	if len(got) != 1 || got[0].MovieID != 11 {
		t.Fatalf("guesses = %+v", got)
	}
	if _, err := f.svc.Guesses(context.Background(), 99); !errors.Is(err, ErrUnknownCinema) {
		t.Fatalf("err = %v", err)
	}
}

func TestListHintsWindowAndOrder(t *testing.T) {
	f := newHintFixture(t)
	f.hints.seed(1, 10, "2024-01-01", 9) // outside the 100 day window
	f.hints.seed(1, 11, "2024-05-01", 1)
	f.hints.seed(1, 12, "2024-05-20", 0)
	f.hints.seed(1, 13, "2024-05-20", 3)
	f.hints.seed(2, 14, "2024-05-20", 3)

	got, err := f.svc.ListHints(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListHints: %v", err)
	}
	want := []uint64{13, 12, 11}
	if len(got) != len(want) {
		t.Fatalf("got %d hints, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].MovieID != id {
			t.Fatalf("position %d: movie %d, want %d", i, got[i].MovieID, id)
		}
	}
}

func TestSubmitSurvivesPublisherFailure(t *testing.T) {
	f := newHintFixture(t)
	f.events.err = errBoom
	f.provider.movies[42] = providerMovie(42, "Sneaky", "2024-07-01")
	if _, err := f.svc.Submit(context.Background(), SubmitRequest{CinemaID: 1, ReportDate: "2024-06-01", MovieID: 42}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}
