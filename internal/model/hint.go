package model

import "time"

// Hint is a crowd-sourced report that a movie ran as a sneak preview at
// a cinema on a given day.  The (CinemaID, MovieID, ReportDate) triple is
// unique.  Only Score changes after creation.
type Hint struct {
	ID         uint64    // hints.id
	CinemaID   uint64    // hints.cinema_id
	MovieID    uint64    // hints.movie_id (movies.tmdb_id)
	ReportDate time.Time // hints.report_date (DATE)
	Score      int       // hints.score, community votes, unbounded
	GuessRank  GuessRank // hints.guess_rank, frozen at submission time
	CreatedAt  time.Time // hints.created_at
}

// HintWithMovie is a hint joined with the catalog fields shown in hint
// listings.
type HintWithMovie struct {
	Hint
	MovieName   string
	ReleaseDate *time.Time
}
