package model

import "time"

// Movie is the catalog entry backing one or more hints.  The TMDB id is
// the canonical identity; the IMDb id is an optional secondary key used
// when a user pastes an IMDb link instead of a TMDB id.
//
// ReleaseDate is nil until a reconciliation pass found a domestic
// theatrical release.  Once set it is never reverted to nil.
type Movie struct {
	TMDBID      uint64     // movies.tmdb_id
	IMDbID      string     // movies.imdb_id ("" when unknown)
	Name        string     // movies.name
	ReleaseDate *time.Time // movies.release_date (DATE, nullable)
	Rating      int        // movies.rating, provider average scaled to 0..100
	Genres      string     // movies.genres, comma joined
	UpdatedAt   time.Time  // movies.updated_at
}

// ReleasedAfter reports whether the movie has a known release date that
// lies strictly after day.
func (m Movie) ReleasedAfter(day time.Time) bool {
	if m.ReleaseDate == nil {
		return false
	}
	return DateOnly(*m.ReleaseDate).After(DateOnly(day))
}

// DateOnly truncates t to midnight UTC of its calendar day.  All hint and
// release dates are compared as calendar days.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.  The
// result is negative when b lies before a.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
