// Package repository contains data access logic separated from HTTP handlers.
// This file holds the cinema queries.  A Cinema belongs to exactly one
// city and is the place hints are reported against.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to define custom error values
	"strings"

	"github.com/iliyamo/sneak-radar/internal/model"
)

// ErrCinemaNotFound is returned when a cinema cannot be found in the DB.
var ErrCinemaNotFound = errors.New("cinema not found")

// CinemaRepo encapsulates all database queries related to cinemas.  It
// depends on a sql.DB connection which should be configured elsewhere.
type CinemaRepo struct {
	db dbtx // db is the underlying database connection pool
}

// NewCinemaRepo constructs a CinemaRepo with the provided DB handle.  This
// function allows dependency injection of the database in tests and at
// startup.  There is no initialization logic beyond assigning the field.
func NewCinemaRepo(db *sql.DB) *CinemaRepo {
	return &CinemaRepo{db: db}
}

// Create inserts a new cinema into the database.  On success the cinema's
// ID field will be populated with the auto-generated value.  A cinema
// name that already exists in the same city yields ErrConflict; an
// unknown city yields ErrCityNotFound.
func (r *CinemaRepo) Create(ctx context.Context, c *model.Cinema) error {
	c.Name = strings.TrimSpace(c.Name)
	var exists int
	if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM cities WHERE id = ?", c.CityID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCityNotFound
		}
		return err
	}
	const qInsert = "INSERT INTO cinemas (city_id, name) VALUES (?, ?)"
	res, err := r.db.ExecContext(ctx, qInsert, c.CityID, c.Name)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err // propagate DB errors to the caller
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID fetches a cinema by its ID.  It returns ErrCinemaNotFound if no
// row is found.
func (r *CinemaRepo) GetByID(ctx context.Context, id uint64) (*model.Cinema, error) {
	const q = "SELECT id, city_id, name FROM cinemas WHERE id = ?"
	var c model.Cinema
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.CityID, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCinemaNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByNameAndCity resolves the "Cinema, City" pairs used by the legacy
// import format.
func (r *CinemaRepo) FindByNameAndCity(ctx context.Context, name, city string) (*model.Cinema, error) {
	const q = `SELECT c.id, c.city_id, c.name
	           FROM cinemas c JOIN cities ci ON ci.id = c.city_id
	           WHERE c.name = ? AND ci.name = ? LIMIT 1`
	var c model.Cinema
	err := r.db.QueryRowContext(ctx, q, strings.TrimSpace(name), strings.TrimSpace(city)).Scan(&c.ID, &c.CityID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCinemaNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListByCity returns the cinemas of one city ordered by name.
func (r *CinemaRepo) ListByCity(ctx context.Context, cityID uint64) ([]model.Cinema, error) {
	const q = `SELECT id, city_id, name FROM cinemas WHERE city_id = ? ORDER BY name, id`
	return r.list(ctx, q, cityID)
}

// ListAll returns all cinemas. It is used for public browsing endpoints
// to present available cinemas to unauthenticated users.
func (r *CinemaRepo) ListAll(ctx context.Context) ([]model.Cinema, error) {
	const q = `SELECT id, city_id, name FROM cinemas ORDER BY id`
	return r.list(ctx, q)
}

func (r *CinemaRepo) list(ctx context.Context, q string, args ...any) ([]model.Cinema, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Cinema, 0)
	for rows.Next() {
		var c model.Cinema
		if err := rows.Scan(&c.ID, &c.CityID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
