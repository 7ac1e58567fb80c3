package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/ranking"
)

var (
	// ErrHintNotFound is returned when no hint has the requested id.
	ErrHintNotFound = errors.New("hint not found")
	// ErrHintExists is returned when the (cinema, movie, report date)
	// triple is already recorded.  The unique key raises it even when two
	// submissions race past the Exists check.
	ErrHintExists = errors.New("hint already recorded")
)

// HintRepo is the hint store.  It also serves as the evidence source of
// the ranking engine.
type HintRepo struct {
	db   dbtx
	conn *sql.DB // nil inside Snapshot
}

// NewHintRepo constructs a HintRepo.
func NewHintRepo(db *sql.DB) *HintRepo {
	return &HintRepo{db: db, conn: db}
}

// Snapshot runs fn against a repository bound to a REPEATABLE READ
// transaction.  Every read fn makes sees the same snapshot, so a ranking
// computed inside fn cannot observe a hint fn inserts later.  The
// transaction commits when fn returns nil.
func (r *HintRepo) Snapshot(ctx context.Context, fn func(*HintRepo) error) (err error) {
	if r.conn == nil {
		// Already inside a snapshot.
		return fn(r)
	}
	tx, err := r.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(&HintRepo{db: tx})
}

const hintColumns = "h.id, h.cinema_id, h.movie_id, h.report_date, h.score, h.guess_rank, h.created_at"

func scanHint(row interface{ Scan(...any) error }, extra ...any) (*model.Hint, error) {
	var h model.Hint
	dest := append([]any{&h.ID, &h.CinemaID, &h.MovieID, &h.ReportDate, &h.Score, &h.GuessRank, &h.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	h.ReportDate = model.DateOnly(h.ReportDate)
	return &h, nil
}

// MovieHinted reports whether any cinema has recorded a hint for the
// movie.  It locks the movie row and reads hints with a locking read, so
// inside a Snapshot concurrent first submissions of one movie run one
// after the other and only the first sees no hint.  Call it before any
// plain read of the snapshot.
func (r *HintRepo) MovieHinted(ctx context.Context, movieID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM movies WHERE tmdb_id = ? FOR UPDATE", movieID).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM hints WHERE movie_id = ? LIMIT 1 LOCK IN SHARE MODE", movieID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Exists reports whether the triple is already recorded.
func (r *HintRepo) Exists(ctx context.Context, cinemaID, movieID uint64, day time.Time) (bool, error) {
	const q = "SELECT 1 FROM hints WHERE cinema_id = ? AND movie_id = ? AND report_date = ? LIMIT 1"
	var one int
	err := r.db.QueryRowContext(ctx, q, cinemaID, movieID, sqlDate(day)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts a hint with its frozen guess rank.  The score is always
// stored as given (zero for live submissions).  On success the hint is
// reloaded so ID and CreatedAt are populated.
func (r *HintRepo) Create(ctx context.Context, h *model.Hint) error {
	const q = `INSERT INTO hints (cinema_id, movie_id, report_date, score, guess_rank)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, h.CinemaID, h.MovieID, sqlDate(h.ReportDate), h.Score, h.GuessRank)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrHintExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return fmt.Errorf("reload hint %d: %w", id, err)
	}
	*h = *stored
	return nil
}

// GetByID loads one hint.
func (r *HintRepo) GetByID(ctx context.Context, id uint64) (*model.Hint, error) {
	q := "SELECT " + hintColumns + " FROM hints h WHERE h.id = ?"
	h, err := scanHint(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHintNotFound
	}
	return h, err
}

// AddScore applies delta to a hint's score in a single statement and
// returns the updated hint.  Concurrent votes never lose updates.
func (r *HintRepo) AddScore(ctx context.Context, id uint64, delta int) (*model.Hint, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE hints SET score = score + ? WHERE id = ?", delta, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrHintNotFound
	}
	return r.GetByID(ctx, id)
}

// ListByCinema returns the hints of a cinema reported on or after from,
// newest first and higher scores first within a day.
func (r *HintRepo) ListByCinema(ctx context.Context, cinemaID uint64, from time.Time) ([]model.HintWithMovie, error) {
	q := "SELECT " + hintColumns + `, m.name, m.release_date
	      FROM hints h JOIN movies m ON m.tmdb_id = h.movie_id
	      WHERE h.cinema_id = ? AND h.report_date >= ?
	      ORDER BY h.report_date DESC, h.score DESC, h.id DESC`
	rows, err := r.db.QueryContext(ctx, q, cinemaID, sqlDate(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.HintWithMovie, 0)
	for rows.Next() {
		var (
			name    string
			release sql.NullTime
		)
		h, err := scanHint(rows, &name, &release)
		if err != nil {
			return nil, err
		}
		out = append(out, model.HintWithMovie{Hint: *h, MovieName: name, ReleaseDate: timePtr(release)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Evidence implements ranking.EvidenceSource.  The target cinema's own
// hints are filtered here already; the engine filters them again.
func (r *HintRepo) Evidence(ctx context.Context, q ranking.Query) ([]ranking.Evidence, error) {
	upper := "h.report_date < ?"
	if q.IncludeTo {
		upper = "h.report_date <= ?"
	}
	query := `SELECT h.id, h.cinema_id, h.movie_id, m.name, h.report_date, h.score, m.release_date
	          FROM hints h JOIN movies m ON m.tmdb_id = h.movie_id
	          WHERE h.score >= 0
	            AND h.cinema_id <> ?
	            AND h.report_date >= ? AND ` + upper + `
	            AND m.release_date > ?
	          ORDER BY h.report_date, h.id`
	rows, err := r.db.QueryContext(ctx, query, q.CinemaID, sqlDate(q.From), sqlDate(q.To), sqlDate(q.AsOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ranking.Evidence, 0)
	for rows.Next() {
		var e ranking.Evidence
		if err := rows.Scan(&e.HintID, &e.CinemaID, &e.MovieID, &e.MovieName, &e.ReportDate, &e.Score, &e.ReleaseDate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportedMovies implements ranking.EvidenceSource.
func (r *HintRepo) ReportedMovies(ctx context.Context, cinemaID uint64) (map[uint64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT movie_id FROM hints WHERE cinema_id = ?", cinemaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]struct{})
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GuessRankCount is one row of the accuracy histogram.
type GuessRankCount struct {
	Rank  model.GuessRank
	Count int
}

// GuessRankCounts groups all hints by their frozen guess rank.  NULL
// ranks come back as model.GuessRankUnset.
func (r *HintRepo) GuessRankCounts(ctx context.Context) ([]GuessRankCount, error) {
	const q = "SELECT guess_rank, COUNT(*) FROM hints GROUP BY guess_rank ORDER BY guess_rank"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GuessRankCount, 0)
	for rows.Next() {
		var c GuessRankCount
		if err := rows.Scan(&c.Rank, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
