package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/sneak-radar/internal/model"
)

// ErrCityNotFound is returned when a city cannot be found in the DB.
var ErrCityNotFound = errors.New("city not found")

// CityRepo encapsulates the queries on the cities table.
type CityRepo struct {
	db dbtx
}

// NewCityRepo constructs a CityRepo with the provided DB handle.
func NewCityRepo(db *sql.DB) *CityRepo {
	return &CityRepo{db: db}
}

// Create inserts a city.  A duplicate name yields ErrConflict.
func (r *CityRepo) Create(ctx context.Context, c *model.City) error {
	c.Name = strings.TrimSpace(c.Name)
	res, err := r.db.ExecContext(ctx, "INSERT INTO cities (name) VALUES (?)", c.Name)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID fetches a city without its cinemas.
func (r *CityRepo) GetByID(ctx context.Context, id uint64) (*model.City, error) {
	const q = "SELECT id, name FROM cities WHERE id = ?"
	var c model.City
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByName looks a city up by its exact name.
func (r *CityRepo) FindByName(ctx context.Context, name string) (*model.City, error) {
	const q = "SELECT id, name FROM cities WHERE name = ? LIMIT 1"
	var c model.City
	if err := r.db.QueryRowContext(ctx, q, strings.TrimSpace(name)).Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListWithCinemas returns every city ordered by name together with its
// cinemas.  Cities without cinemas are included with an empty list.
func (r *CityRepo) ListWithCinemas(ctx context.Context) ([]model.City, error) {
	const q = `SELECT ci.id, ci.name, c.id, c.name
	           FROM cities ci
	           LEFT JOIN cinemas c ON c.city_id = ci.id
	           ORDER BY ci.name, ci.id, c.name, c.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.City, 0)
	for rows.Next() {
		var (
			cityID     uint64
			cityName   string
			cinemaID   sql.NullInt64
			cinemaName sql.NullString
		)
		if err := rows.Scan(&cityID, &cityName, &cinemaID, &cinemaName); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != cityID {
			out = append(out, model.City{ID: cityID, Name: cityName, Cinemas: []model.Cinema{}})
		}
		if cinemaID.Valid {
			last := &out[len(out)-1]
			last.Cinemas = append(last.Cinemas, model.Cinema{
				ID:     uint64(cinemaID.Int64),
				CityID: cityID,
				Name:   cinemaName.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
