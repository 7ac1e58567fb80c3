package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/tmdb"
)

// Reconciler resolves movie ids against the metadata provider and keeps
// the catalog in sync.  Concurrent resolutions of the same id share one
// provider call.
type Reconciler struct {
	movies   MovieStore
	provider MovieProvider
	region   string
	timeout  time.Duration
	log      *logrus.Logger
	group    singleflight.Group
}

// NewReconciler builds a Reconciler.  region is the ISO 3166-1 country
// whose release dates are trusted; timeout bounds one resolution.
func NewReconciler(movies MovieStore, provider MovieProvider, region string, timeout time.Duration, log *logrus.Logger) *Reconciler {
	if region == "" {
		region = "DE"
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Reconciler{
		movies:   movies,
		provider: provider,
		region:   strings.ToUpper(region),
		timeout:  timeout,
		log:      log,
	}
}

// Resolve fetches movie id from the provider, normalizes it and upserts
// it into the catalog.  Provider failures of any kind return
// ErrMovieUnavailable; catalog failures are returned as they are.
func (r *Reconciler) Resolve(ctx context.Context, id uint64) (*model.Movie, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: movie id 0", ErrMovieUnavailable)
	}
	// The shared call must not die with the first caller's request.
	callCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(strconv.FormatUint(id, 10), func() (any, error) {
		return r.resolve(callCtx, id)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrMovieUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		m := *res.Val.(*model.Movie)
		return &m, nil
	}
}

func (r *Reconciler) resolve(ctx context.Context, id uint64) (*model.Movie, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pm, err := r.provider.GetMovie(ctx, id)
	if err != nil {
		r.log.WithError(err).WithField("tmdb_id", id).Warn("movie lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrMovieUnavailable, err)
	}
	m := NormalizeMovie(pm, r.region)
	if m.TMDBID == 0 {
		m.TMDBID = id
	}
	stored, err := r.movies.Upsert(ctx, &m)
	if errors.Is(err, repository.ErrIMDbConflict) {
		r.log.WithFields(logrus.Fields{"tmdb_id": id, "imdb_id": m.IMDbID}).Warn("imdb id claimed by another movie")
		return nil, fmt.Errorf("%w: %v", ErrMovieUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert movie %d: %w", id, err)
	}
	r.log.WithFields(logrus.Fields{
		"tmdb_id":      stored.TMDBID,
		"name":         stored.Name,
		"release_date": formatDay(stored.ReleaseDate),
	}).Debug("movie reconciled")
	return stored, nil
}

// LookupIMDb maps an IMDb id to a TMDB id.  Provider failures, a missing
// match included, return ErrMovieUnavailable.
func (r *Reconciler) LookupIMDb(ctx context.Context, imdbID string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	id, err := r.provider.FindByIMDb(ctx, imdbID)
	if err != nil {
		r.log.WithError(err).WithField("imdb_id", imdbID).Warn("imdb lookup failed")
		return 0, fmt.Errorf("%w: %v", ErrMovieUnavailable, err)
	}
	return id, nil
}

// NormalizeMovie converts a provider record into a catalog row.
func NormalizeMovie(pm *tmdb.Movie, region string) model.Movie {
	m := model.Movie{
		TMDBID:      pm.ID,
		Name:        strings.TrimSpace(pm.Title),
		ReleaseDate: DomesticReleaseDate(pm.ReleaseDates.Results, region),
		Rating:      NormalizeRating(pm.VoteAverage),
		Genres:      JoinGenres(pm.Genres),
	}
	if id, ok := ExtractIMDbID(pm.IMDbID); ok {
		m.IMDbID = id
	}
	return m
}

// DomesticReleaseDate picks the theatrical release date of region.  A
// general theatrical release wins over a limited one; the earliest date
// of the winning type is used.  Without an entry for region the result
// is nil, never a foreign or festival date.
func DomesticReleaseDate(results []tmdb.CountryReleases, region string) *time.Time {
	var theatrical, limited *time.Time
	earliest := func(cur *time.Time, t time.Time) *time.Time {
		d := model.DateOnly(t)
		if cur == nil || d.Before(*cur) {
			return &d
		}
		return cur
	}
	for _, cr := range results {
		if !strings.EqualFold(cr.Country, region) {
			continue
		}
		for _, rd := range cr.ReleaseDates {
			if rd.ReleaseDate.IsZero() {
				continue
			}
			switch rd.Type {
			case tmdb.ReleaseTheatrical:
				theatrical = earliest(theatrical, rd.ReleaseDate)
			case tmdb.ReleaseLimited:
				limited = earliest(limited, rd.ReleaseDate)
			}
		}
	}
	if theatrical != nil {
		return theatrical
	}
	return limited
}

// JoinGenres joins genre names with ",".  No genres yield "".
func JoinGenres(genres []tmdb.Genre) string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		if n := strings.TrimSpace(g.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ",")
}

// NormalizeRating scales a 0-10 average to an integer 0-100.
func NormalizeRating(avg float64) int {
	if math.IsNaN(avg) {
		return 0
	}
	r := int(math.Round(avg * 10))
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return r
}

var (
	imdbIDPattern   = regexp.MustCompile(`^tt\d{7,10}$`)
	imdbPathPattern = regexp.MustCompile(`^/title/(tt\d{7,10})(?:/.*)?$`)
)

// ExtractIMDbID accepts a bare IMDb id ("tt1234567") or an imdb.com title
// URL and returns the id.
func ExtractIMDbID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if imdbIDPattern.MatchString(s) {
		return s, true
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "imdb.com" && !strings.HasSuffix(host, ".imdb.com") {
		return "", false
	}
	m := imdbPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
