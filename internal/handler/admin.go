package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/service"
)

// CityWriter creates cities.
type CityWriter interface {
	Create(ctx context.Context, c *model.City) error
}

// CinemaWriter creates cinemas.
type CinemaWriter interface {
	Create(ctx context.Context, c *model.Cinema) error
}

// MovieResolver refreshes one catalog movie from the provider.
type MovieResolver interface {
	Resolve(ctx context.Context, id uint64) (*model.Movie, error)
}

// CatalogSweeper runs one catalog maintenance pass.
type CatalogSweeper interface {
	Run(ctx context.Context) (service.SweepStats, error)
}

// AdminHandler serves the curator-only endpoints.
type AdminHandler struct {
	Cities  CityWriter
	Cinemas CinemaWriter
	Movies  MovieResolver
	Sweeper CatalogSweeper
	Log     *logrus.Logger
}

func NewAdminHandler(cities CityWriter, cinemas CinemaWriter, movies MovieResolver, sweeper CatalogSweeper, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{Cities: cities, Cinemas: cinemas, Movies: movies, Sweeper: sweeper, Log: log}
}

type createCityReq struct {
	Name string `json:"name" validate:"required,max=120"`
}

type createCinemaReq struct {
	CityID uint64 `json:"city_id" validate:"required"`
	Name   string `json:"name" validate:"required,max=160"`
}

type movieResp struct {
	ID          uint64  `json:"id"`
	IMDbID      string  `json:"imdb_id,omitempty"`
	Name        string  `json:"name"`
	ReleaseDate *string `json:"release_date"`
	Rating      int     `json:"rating"`
	Genres      string  `json:"genres"`
}

// CreateCity handles POST /v1/admin/cities.
func (h *AdminHandler) CreateCity(c echo.Context) error {
	var req createCityReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	city := &model.City{Name: strings.TrimSpace(req.Name)}
	if err := h.Cities.Create(c.Request().Context(), city); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "city already exists"})
		}
		h.Log.WithError(err).Error("create city")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.Log.WithFields(logrus.Fields{"city_id": city.ID, "name": city.Name}).Info("city created")
	return c.JSON(http.StatusCreated, PublicCity{ID: city.ID, Name: city.Name, Cinemas: []PublicCinema{}})
}

// CreateCinema handles POST /v1/admin/cinemas.
func (h *AdminHandler) CreateCinema(c echo.Context) error {
	var req createCinemaReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	cin := &model.Cinema{CityID: req.CityID, Name: strings.TrimSpace(req.Name)}
	if err := h.Cinemas.Create(c.Request().Context(), cin); err != nil {
		switch {
		case errors.Is(err, repository.ErrCityNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "city not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "cinema already exists in this city"})
		}
		h.Log.WithError(err).Error("create cinema")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.Log.WithFields(logrus.Fields{"cinema_id": cin.ID, "city_id": cin.CityID, "name": cin.Name}).Info("cinema created")
	return c.JSON(http.StatusCreated, PublicCinema{ID: cin.ID, CityID: cin.CityID, Name: cin.Name})
}

// RefreshMovie handles POST /v1/admin/movies/:id/refresh.
func (h *AdminHandler) RefreshMovie(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	m, err := h.Movies.Resolve(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrMovieUnavailable) {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "movie metadata unavailable"})
		}
		h.Log.WithError(err).WithField("tmdb_id", id).Error("refresh movie")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, movieResp{
		ID:          m.TMDBID,
		IMDbID:      m.IMDbID,
		Name:        m.Name,
		ReleaseDate: formatDay(m.ReleaseDate),
		Rating:      m.Rating,
		Genres:      m.Genres,
	})
}

// Reconcile handles POST /v1/admin/movies/reconcile.  It runs one
// catalog sweep synchronously and returns its stats.
func (h *AdminHandler) Reconcile(c echo.Context) error {
	stats, err := h.Sweeper.Run(c.Request().Context())
	if err != nil {
		h.Log.WithError(err).Error("manual catalog sweep")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed", "stats": stats})
	}
	return c.JSON(http.StatusOK, stats)
}
