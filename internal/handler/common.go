// Package handler holds the echo handlers of the HTTP API.  Handlers
// decode and validate requests, call one service and map its errors to
// status codes; they hold no domain logic.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/service"
	"github.com/iliyamo/sneak-radar/internal/validation"
)

const dayLayout = "2006-01-02"

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// bindValid binds the body into dst and runs the registered validator.
// On failure the 400 response is already written and ok is false.
func bindValid(c echo.Context, dst any) (ok bool, err error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verr.Fields})
		}
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return true, nil
}

// serviceError maps a service error to a response.  Rejections carry
// their reason code; everything else is logged and hidden behind a 500.
func serviceError(c echo.Context, log *logrus.Logger, err error) error {
	reason := service.Reason(err)
	switch {
	case errors.Is(err, service.ErrUnknownCinema):
		return c.JSON(http.StatusNotFound, echo.Map{"error": reason})
	case errors.Is(err, service.ErrAlreadyRecorded):
		return c.JSON(http.StatusOK, echo.Map{"status": reason})
	case errors.Is(err, service.ErrMovieUnresolvable):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": reason})
	case reason != "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": reason, "message": err.Error()})
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

func formatDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dayLayout)
	return &s
}
