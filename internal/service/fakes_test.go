package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/queue"
	"github.com/iliyamo/sneak-radar/internal/ranking"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/tmdb"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

type fakeCinemas map[uint64]model.Cinema

func (f fakeCinemas) GetByID(_ context.Context, id uint64) (*model.Cinema, error) {
	c, ok := f[id]
	if !ok {
		return nil, repository.ErrCinemaNotFound
	}
	return &c, nil
}

// fakeMovies applies the same merge rules as the MySQL upsert.
type fakeMovies struct {
	mu        sync.Mutex
	rows      map[uint64]model.Movie
	upsertErr error
}

func newFakeMovies(ms ...model.Movie) *fakeMovies {
	f := &fakeMovies{rows: map[uint64]model.Movie{}}
	for _, m := range ms {
		f.rows[m.TMDBID] = m
	}
	return f
}

func (f *fakeMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return &m, nil
}

func (f *fakeMovies) GetByIMDbID(_ context.Context, imdbID string) (*model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.IMDbID == imdbID {
			m := m
			return &m, nil
		}
	}
	return nil, repository.ErrMovieNotFound
}

func (f *fakeMovies) Upsert(_ context.Context, m *model.Movie) (*model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := *m
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	for id, o := range f.rows {
		if next.IMDbID != "" && o.IMDbID == next.IMDbID && id != next.TMDBID {
			next.IMDbID = ""
		}
	}
	if old, ok := f.rows[m.TMDBID]; ok {
		if next.ReleaseDate == nil {
			next.ReleaseDate = old.ReleaseDate
		}
		if next.IMDbID == "" {
			next.IMDbID = old.IMDbID
		}
		if next.Name == "" {
			next.Name = old.Name
		}
	}
	f.rows[m.TMDBID] = next
	return &next, nil
}

func (f *fakeMovies) ListStale(_ context.Context, today time.Time) ([]model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Movie
	for _, m := range f.rows {
		if m.ReleaseDate == nil || m.ReleasedAfter(today) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TMDBID < out[j].TMDBID })
	return out, nil
}

type fakeProvider struct {
	movies map[uint64]*tmdb.Movie
	imdb   map[string]uint64
	err    error
	block  chan struct{} // when set, GetMovie waits for it or ctx
	calls  int32
}

func (p *fakeProvider) GetMovie(ctx context.Context, id uint64) (*tmdb.Movie, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	m, ok := p.movies[id]
	if !ok {
		return nil, tmdb.ErrNotFound
	}
	return m, nil
}

func (p *fakeProvider) FindByIMDb(_ context.Context, imdbID string) (uint64, error) {
	if id, ok := p.imdb[imdbID]; ok {
		return id, nil
	}
	return 0, tmdb.ErrNotFound
}

// providerMovie builds a provider record released in DE on release.
func providerMovie(id uint64, title, release string) *tmdb.Movie {
	m := &tmdb.Movie{ID: id, Title: title, VoteAverage: 7}
	m.ReleaseDates.Results = []tmdb.CountryReleases{{
		Country:      "DE",
		ReleaseDates: []tmdb.ReleaseDate{{ReleaseDate: day(release), Type: tmdb.ReleaseTheatrical}},
	}}
	return m
}

type fakeHints struct {
	snap   sync.Mutex // serializes snapshots like the movie row lock
	mu     sync.Mutex
	movies *fakeMovies
	rows   []model.Hint
	nextID uint64
}

func newFakeHints(movies *fakeMovies) *fakeHints {
	return &fakeHints{movies: movies, nextID: 1}
}

// seed stores a hint as if it had been recorded earlier.
func (f *fakeHints) seed(cinemaID, movieID uint64, reported string, score int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, model.Hint{ID: f.nextID, CinemaID: cinemaID, MovieID: movieID, ReportDate: day(reported), Score: score})
	f.nextID++
}

func (f *fakeHints) Snapshot(_ context.Context, fn func(HintTx) error) error {
	f.snap.Lock()
	defer f.snap.Unlock()
	return fn(f)
}

func (f *fakeHints) MovieHinted(_ context.Context, movieID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.rows {
		if h.MovieID == movieID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHints) Exists(_ context.Context, cinemaID, movieID uint64, d time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.rows {
		if h.CinemaID == cinemaID && h.MovieID == movieID && h.ReportDate.Equal(model.DateOnly(d)) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHints) Create(_ context.Context, h *model.Hint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.CinemaID == h.CinemaID && o.MovieID == h.MovieID && o.ReportDate.Equal(h.ReportDate) {
			return repository.ErrHintExists
		}
	}
	h.ID = f.nextID
	f.nextID++
	f.rows = append(f.rows, *h)
	return nil
}

func (f *fakeHints) GetByID(_ context.Context, id uint64) (*model.Hint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.rows {
		if h.ID == id {
			h := h
			return &h, nil
		}
	}
	return nil, repository.ErrHintNotFound
}

func (f *fakeHints) AddScore(_ context.Context, id uint64, delta int) (*model.Hint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Score += delta
			h := f.rows[i]
			return &h, nil
		}
	}
	return nil, repository.ErrHintNotFound
}

func (f *fakeHints) ListByCinema(_ context.Context, cinemaID uint64, from time.Time) ([]model.HintWithMovie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.HintWithMovie
	for _, h := range f.rows {
		if h.CinemaID == cinemaID && !h.ReportDate.Before(from) {
			out = append(out, model.HintWithMovie{Hint: h})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReportDate.Equal(out[j].ReportDate) {
			return out[i].ReportDate.After(out[j].ReportDate)
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (f *fakeHints) GuessRankCounts(context.Context) ([]repository.GuessRankCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[model.GuessRank]int{}
	for _, h := range f.rows {
		counts[h.GuessRank]++
	}
	out := make([]repository.GuessRankCount, 0, len(counts))
	for r, n := range counts {
		out = append(out, repository.GuessRankCount{Rank: r, Count: n})
	}
	return out, nil
}

func (f *fakeHints) Evidence(_ context.Context, q ranking.Query) ([]ranking.Evidence, error) {
	f.mu.Lock()
	rows := append([]model.Hint(nil), f.rows...)
	f.mu.Unlock()

	var out []ranking.Evidence
	for _, h := range rows {
		if h.Score < 0 || h.CinemaID == q.CinemaID || !q.Contains(h.ReportDate) {
			continue
		}
		m, err := f.movies.GetByID(context.Background(), h.MovieID)
		if err != nil || !m.ReleasedAfter(q.AsOf) {
			continue
		}
		out = append(out, ranking.Evidence{
			HintID: h.ID, CinemaID: h.CinemaID, MovieID: h.MovieID, MovieName: m.Name,
			ReportDate: h.ReportDate, Score: h.Score, ReleaseDate: *m.ReleaseDate,
		})
	}
	return out, nil
}

func (f *fakeHints) ReportedMovies(_ context.Context, cinemaID uint64) (map[uint64]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint64]struct{}{}
	for _, h := range f.rows {
		if h.CinemaID == cinemaID {
			out[h.MovieID] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeHints) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.HintEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.HintEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

var errBoom = errors.New("boom")
