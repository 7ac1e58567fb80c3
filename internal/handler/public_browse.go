package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/repository"
)

// CityReader lists cities.
type CityReader interface {
	GetByID(ctx context.Context, id uint64) (*model.City, error)
	ListWithCinemas(ctx context.Context) ([]model.City, error)
}

// CinemaReader lists cinemas.
type CinemaReader interface {
	ListByCity(ctx context.Context, cityID uint64) ([]model.Cinema, error)
	ListAll(ctx context.Context) ([]model.Cinema, error)
}

// PublicHandler serves the unauthenticated browse endpoints used by the
// client to pick a cinema.
type PublicHandler struct {
	Cities  CityReader
	Cinemas CinemaReader
	Log     *logrus.Logger
}

func NewPublicHandler(cities CityReader, cinemas CinemaReader, log *logrus.Logger) *PublicHandler {
	return &PublicHandler{Cities: cities, Cinemas: cinemas, Log: log}
}

// PublicCinema is a cinema as exposed by the API.
type PublicCinema struct {
	ID     uint64 `json:"id"`
	CityID uint64 `json:"city_id"`
	Name   string `json:"name"`
}

// PublicCity is a city with its cinemas.
type PublicCity struct {
	ID      uint64         `json:"id"`
	Name    string         `json:"name"`
	Cinemas []PublicCinema `json:"cinemas"`
}

func toPublicCinemas(cs []model.Cinema) []PublicCinema {
	out := make([]PublicCinema, 0, len(cs))
	for _, c := range cs {
		out = append(out, PublicCinema{ID: c.ID, CityID: c.CityID, Name: c.Name})
	}
	return out
}

// GetCities handles GET /v1/cities.
func (h *PublicHandler) GetCities(c echo.Context) error {
	cities, err := h.Cities.ListWithCinemas(c.Request().Context())
	if err != nil {
		h.Log.WithError(err).Error("list cities")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicCity, 0, len(cities))
	for _, city := range cities {
		out = append(out, PublicCity{ID: city.ID, Name: city.Name, Cinemas: toPublicCinemas(city.Cinemas)})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetCityCinemas handles GET /v1/cities/:id/cinemas.
func (h *PublicHandler) GetCityCinemas(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid city id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Cities.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCityNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "city not found"})
		}
		h.Log.WithError(err).Error("load city")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	cinemas, err := h.Cinemas.ListByCity(ctx, id)
	if err != nil {
		h.Log.WithError(err).Error("list cinemas by city")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toPublicCinemas(cinemas)})
}

// GetCinemas handles GET /v1/cinemas.
func (h *PublicHandler) GetCinemas(c echo.Context) error {
	cinemas, err := h.Cinemas.ListAll(c.Request().Context())
	if err != nil {
		h.Log.WithError(err).Error("list cinemas")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toPublicCinemas(cinemas)})
}
