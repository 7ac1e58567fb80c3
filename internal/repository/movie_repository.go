package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/sneak-radar/internal/model"
)

var (
	// ErrMovieNotFound is returned when the catalog has no row for an id.
	ErrMovieNotFound = errors.New("movie not found")
	// ErrIMDbConflict is returned when an upsert lost a race for an IMDb
	// id that another movie took in the meantime.
	ErrIMDbConflict = errors.New("imdb id belongs to another movie")
)

// MovieRepo is the movie catalog.  Rows are keyed by TMDB id and carry an
// optional unique IMDb id.
type MovieRepo struct {
	db dbtx
}

// NewMovieRepo constructs a MovieRepo.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

const movieColumns = "tmdb_id, imdb_id, name, release_date, rating, genres, updated_at"

func scanMovie(row interface{ Scan(...any) error }) (*model.Movie, error) {
	var (
		m       model.Movie
		imdb    sql.NullString
		release sql.NullTime
	)
	if err := row.Scan(&m.TMDBID, &imdb, &m.Name, &release, &m.Rating, &m.Genres, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.IMDbID = imdb.String
	m.ReleaseDate = timePtr(release)
	return &m, nil
}

// GetByID loads a movie by TMDB id.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	q := "SELECT " + movieColumns + " FROM movies WHERE tmdb_id = ?"
	m, err := scanMovie(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	return m, err
}

// GetByIMDbID loads a movie by its secondary IMDb id.
func (r *MovieRepo) GetByIMDbID(ctx context.Context, imdbID string) (*model.Movie, error) {
	q := "SELECT " + movieColumns + " FROM movies WHERE imdb_id = ? LIMIT 1"
	m, err := scanMovie(r.db.QueryRowContext(ctx, q, imdbID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	return m, err
}

// Upsert inserts or refreshes a catalog row and returns the stored state.
//
// Fields are last-writer-wins except three: a NULL release date never
// replaces a known one, an empty IMDb id never replaces a known one, and
// an empty name keeps the previous name.  The rule holds in the statement
// itself so concurrent writers cannot reorder it away.
//
// An IMDb id already attached to another TMDB id is dropped from m;
// otherwise the unique IMDb key would turn the insert into an update of
// the other row.
func (r *MovieRepo) Upsert(ctx context.Context, m *model.Movie) (*model.Movie, error) {
	const q = `INSERT INTO movies (tmdb_id, imdb_id, name, release_date, rating, genres)
	           VALUES (?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             imdb_id      = COALESCE(VALUES(imdb_id), imdb_id),
	             name         = IF(VALUES(name) = '', name, VALUES(name)),
	             release_date = COALESCE(VALUES(release_date), release_date),
	             rating       = VALUES(rating),
	             genres       = VALUES(genres),
	             updated_at   = CURRENT_TIMESTAMP`
	var imdb any
	if m.IMDbID != "" {
		owner, err := r.GetByIMDbID(ctx, m.IMDbID)
		switch {
		case errors.Is(err, ErrMovieNotFound):
			imdb = m.IMDbID
		case err != nil:
			return nil, err
		case owner.TMDBID == m.TMDBID:
			imdb = m.IMDbID
		}
	}
	if _, err := r.db.ExecContext(ctx, q, m.TMDBID, imdb, m.Name, nullDate(m.ReleaseDate), m.Rating, m.Genres); err != nil {
		return nil, err
	}
	stored, err := r.GetByID(ctx, m.TMDBID)
	if errors.Is(err, ErrMovieNotFound) {
		// The statement updated the row owning the IMDb id instead.
		return nil, ErrIMDbConflict
	}
	return stored, err
}

// ListStale returns the movies the maintenance sweep should re-resolve:
// release date unknown or still after today.
func (r *MovieRepo) ListStale(ctx context.Context, today time.Time) ([]model.Movie, error) {
	q := "SELECT " + movieColumns + ` FROM movies
	      WHERE release_date IS NULL OR release_date > ?
	      ORDER BY tmdb_id`
	rows, err := r.db.QueryContext(ctx, q, sqlDate(today))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Movie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
