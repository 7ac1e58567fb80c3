package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/tmdb"
)

func TestDomesticReleaseDate(t *testing.T) {
	rel := func(d string, typ int) tmdb.ReleaseDate { return tmdb.ReleaseDate{ReleaseDate: day(d), Type: typ} }
	cases := []struct {
		name    string
		results []tmdb.CountryReleases
		want    string
	}{
		{"theatrical beats limited", []tmdb.CountryReleases{{Country: "DE", ReleaseDates: []tmdb.ReleaseDate{
			rel("2024-05-01", tmdb.ReleaseLimited), rel("2024-06-13", tmdb.ReleaseTheatrical),
		}}}, "2024-06-13"},
		{"limited only", []tmdb.CountryReleases{{Country: "DE", ReleaseDates: []tmdb.ReleaseDate{
			rel("2024-05-01", tmdb.ReleaseLimited), rel("2024-04-01", tmdb.ReleasePremiere),
		}}}, "2024-05-01"},
		{"earliest theatrical", []tmdb.CountryReleases{{Country: "de", ReleaseDates: []tmdb.ReleaseDate{
			rel("2024-07-01", tmdb.ReleaseTheatrical), rel("2024-06-20", tmdb.ReleaseTheatrical),
		}}}, "2024-06-20"},
		{"foreign dates ignored", []tmdb.CountryReleases{{Country: "US", ReleaseDates: []tmdb.ReleaseDate{
			rel("2024-03-01", tmdb.ReleaseTheatrical),
		}}}, ""},
		{"festival premiere ignored", []tmdb.CountryReleases{{Country: "DE", ReleaseDates: []tmdb.ReleaseDate{
			rel("2024-02-20", tmdb.ReleasePremiere),
		}}}, ""},
		{"no entries", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DomesticReleaseDate(tc.results, "DE")
			if tc.want == "" {
				if got != nil {
					t.Fatalf("got %v, want nil", got)
				}
				return
			}
			if got == nil || !got.Equal(day(tc.want)) {
				t.Fatalf("got %v, want %s", got, tc.want)
			}
		})
	}
}

func TestNormalizeMovie(t *testing.T) {
	pm := providerMovie(42, "  Sneaky ", "2024-07-01")
	pm.VoteAverage = 7.46
	pm.IMDbID = "tt1234567"
	pm.Genres = []tmdb.Genre{{Name: "Drama"}, {Name: "Komödie"}}
	m := NormalizeMovie(pm, "DE")
	if m.TMDBID != 42 || m.Name != "Sneaky" || m.Rating != 75 || m.Genres != "Drama,Komödie" || m.IMDbID != "tt1234567" {
		t.Fatalf("movie = %+v", m)
	}

	pm.Genres = nil
	pm.IMDbID = ""
	if m := NormalizeMovie(pm, "DE"); m.Genres != "" || m.IMDbID != "" {
		t.Fatalf("empty fields = %+v", m)
	}
}

func TestNormalizeRating(t *testing.T) {
	cases := map[float64]int{0: 0, 6.54: 65, 7.46: 75, 10: 100, 11: 100, -1: 0}
	for in, want := range cases {
		if got := NormalizeRating(in); got != want {
			t.Fatalf("NormalizeRating(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestExtractIMDbID(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{"tt1234567", "tt1234567", true},
		{"https://www.imdb.com/title/tt1234567/", "tt1234567", true},
		{"https://m.imdb.com/title/tt12345678/reviews", "tt12345678", true},
		{"https://www.imdb.com/title/tt1234567", "tt1234567", true},
		{"https://www.imdb.com/name/nm0000123/", "", false},
		{"https://evil.example/title/tt1234567/", "", false},
		{"tt123", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractIMDbID(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ExtractIMDbID(%q) = %q, %v", tc.in, got, ok)
		}
	}
}

func TestResolveKeepsKnownReleaseDate(t *testing.T) {
	movies := newFakeMovies(model.Movie{TMDBID: 42, Name: "Sneaky", ReleaseDate: dayPtr("2024-07-01")})
	pm := &tmdb.Movie{ID: 42, Title: "Sneaky", VoteAverage: 8}
	rec := NewReconciler(movies, &fakeProvider{movies: map[uint64]*tmdb.Movie{42: pm}}, "DE", time.Second, quietLogger())

	m, err := rec.Resolve(context.Background(), 42)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.ReleaseDate == nil || !m.ReleaseDate.Equal(day("2024-07-01")) {
		t.Fatalf("release date clobbered: %v", m.ReleaseDate)
	}
	if m.Rating != 80 {
		t.Fatalf("rating not refreshed: %d", m.Rating)
	}
}

func TestResolveIMDbConflictIsUnavailable(t *testing.T) {
	movies := newFakeMovies()
	movies.upsertErr = repository.ErrIMDbConflict
	p := &fakeProvider{movies: map[uint64]*tmdb.Movie{42: providerMovie(42, "Sneaky", "2024-07-01")}}
	rec := NewReconciler(movies, p, "DE", time.Second, quietLogger())

	_, err := rec.Resolve(context.Background(), 42)
	if !errors.Is(err, ErrMovieUnavailable) {
		t.Fatalf("err = %v, want ErrMovieUnavailable", err)
	}
}

func TestResolveTimeoutIsUnavailable(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{})}
	rec := NewReconciler(newFakeMovies(), p, "DE", 20*time.Millisecond, quietLogger())
	if _, err := rec.Resolve(context.Background(), 42); !errors.Is(err, ErrMovieUnavailable) {
		t.Fatalf("err = %v, want ErrMovieUnavailable", err)
	}
}

func TestResolveCollapsesConcurrentCalls(t *testing.T) {
	p := &fakeProvider{
		movies: map[uint64]*tmdb.Movie{42: providerMovie(42, "Sneaky", "2024-07-01")},
		block:  make(chan struct{}),
	}
	rec := NewReconciler(newFakeMovies(), p, "DE", 5*time.Second, quietLogger())

	var (
		wg     sync.WaitGroup
		failed int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m, err := rec.Resolve(context.Background(), 42); err != nil || m.TMDBID != 42 {
				atomic.AddInt32(&failed, 1)
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(p.block)
	wg.Wait()

	if failed != 0 {
		t.Fatalf("%d resolutions failed", failed)
	}
	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Fatalf("provider called %d times, want 1", got)
	}
}

func TestSweeperSkipsFailures(t *testing.T) {
	movies := newFakeMovies(
		model.Movie{TMDBID: 1, Name: "Unknown date"},
		model.Movie{TMDBID: 2, Name: "Upcoming", ReleaseDate: dayPtr("2024-07-01")},
		model.Movie{TMDBID: 3, Name: "Released", ReleaseDate: dayPtr("2024-01-01")},
	)
	p := &fakeProvider{movies: map[uint64]*tmdb.Movie{2: providerMovie(2, "Upcoming", "2024-06-20")}}
	rec := NewReconciler(movies, p, "DE", time.Second, quietLogger())
	sw := NewSweeper(movies, rec, quietLogger())
	sw.now = func() time.Time { return day("2024-06-01") }

	stats, err := sw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats != (SweepStats{Checked: 2, Updated: 1, Failed: 1}) {
		t.Fatalf("stats = %+v", stats)
	}
	m, _ := movies.GetByID(context.Background(), 2)
	if !m.ReleaseDate.Equal(day("2024-06-20")) {
		t.Fatalf("release date not refreshed: %v", m.ReleaseDate)
	}
}
