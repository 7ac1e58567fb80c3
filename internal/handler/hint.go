package handler

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/ranking"
	"github.com/iliyamo/sneak-radar/internal/service"
)

// HintAPI is the part of service.HintService the handlers use.
type HintAPI interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*model.Hint, error)
	Guesses(ctx context.Context, cinemaID uint64) ([]ranking.Guess, error)
	ListHints(ctx context.Context, cinemaID uint64) ([]model.HintWithMovie, error)
}

// VoteAPI is implemented by service.VoteService.
type VoteAPI interface {
	Vote(ctx context.Context, hintID uint64, up bool, magnitude int) (*model.Hint, error)
}

// AuditAPI is implemented by service.AuditService.
type AuditAPI interface {
	Accuracy(ctx context.Context) (service.AccuracyReport, error)
}

// HintHandler serves hint submission, voting, listings and the audit.
type HintHandler struct {
	Hints HintAPI
	Votes VoteAPI
	Audit AuditAPI
	Log   *logrus.Logger
}

func NewHintHandler(hints HintAPI, votes VoteAPI, audit AuditAPI, log *logrus.Logger) *HintHandler {
	return &HintHandler{Hints: hints, Votes: votes, Audit: audit, Log: log}
}

type submitHintReq struct {
	CinemaID uint64 `json:"cinema_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
	MovieID  uint64 `json:"movie_id" validate:"required_without=IMDb"`
	IMDb     string `json:"imdb" validate:"required_without=MovieID"`
}

type voteReq struct {
	Up        bool     `json:"up"`
	Magnitude *float64 `json:"magnitude" validate:"required"`
}

type hintResp struct {
	ID          uint64          `json:"id"`
	CinemaID    uint64          `json:"cinema_id"`
	MovieID     uint64          `json:"movie_id"`
	MovieName   string          `json:"movie_name,omitempty"`
	ReleaseDate *string         `json:"release_date,omitempty"`
	ReportDate  string          `json:"report_date"`
	Score       int             `json:"score"`
	GuessRank   model.GuessRank `json:"guess_rank"`
}

type guessMovie struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type guessResp struct {
	Movie      guessMovie `json:"movie"`
	Confidence float64    `json:"confidence"`
	DaysTill   int        `json:"days_till"`
	Hints      int        `json:"hints"`
}

func toHintResp(h model.Hint) hintResp {
	return hintResp{
		ID:         h.ID,
		CinemaID:   h.CinemaID,
		MovieID:    h.MovieID,
		ReportDate: h.ReportDate.Format(dayLayout),
		Score:      h.Score,
		GuessRank:  h.GuessRank,
	}
}

// Submit handles POST /v1/hints.  A new hint answers 201, a repeated
// one 200 with status "already_recorded".
func (h *HintHandler) Submit(c echo.Context) error {
	var req submitHintReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	hint, err := h.Hints.Submit(ctx, service.SubmitRequest{
		CinemaID:   req.CinemaID,
		ReportDate: req.Date,
		MovieID:    req.MovieID,
		MovieRef:   req.IMDb,
	})
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toHintResp(*hint))
}

// Guesses handles GET /v1/cinemas/:id/guesses.
func (h *HintHandler) Guesses(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cinema id"})
	}
	guesses, err := h.Hints.Guesses(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	out := make([]guessResp, 0, len(guesses))
	for _, g := range guesses {
		out = append(out, guessResp{
			Movie:      guessMovie{ID: g.MovieID, Name: g.MovieName, ReleaseDate: g.ReleaseDate.Format(dayLayout)},
			Confidence: g.Confidence,
			DaysTill:   g.DaysTill,
			Hints:      g.Hints,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ListHints handles GET /v1/cinemas/:id/hints.
func (h *HintHandler) ListHints(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cinema id"})
	}
	hints, err := h.Hints.ListHints(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	out := make([]hintResp, 0, len(hints))
	for _, hm := range hints {
		r := toHintResp(hm.Hint)
		r.MovieName = hm.MovieName
		r.ReleaseDate = formatDay(hm.ReleaseDate)
		out = append(out, r)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Vote handles POST /v1/hints/:id/vote.  Votes on unknown hints answer
// 200 with status "noop".
func (h *HintHandler) Vote(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hint id"})
	}
	var req voteReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	m := *req.Magnitude
	if m != math.Trunc(m) || m < 1 || m > 2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_magnitude", "message": service.ErrInvalidMagnitude.Error()})
	}
	hint, err := h.Votes.Vote(c.Request().Context(), id, req.Up, int(m))
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	if hint == nil {
		return c.JSON(http.StatusOK, echo.Map{"status": "noop"})
	}
	return c.JSON(http.StatusOK, toHintResp(*hint))
}

type auditBucketResp struct {
	GuessRank model.GuessRank `json:"guess_rank"`
	Count     int             `json:"count"`
}

// Accuracy handles GET /v1/audit/accuracy.
func (h *HintHandler) Accuracy(c echo.Context) error {
	rep, err := h.Audit.Accuracy(c.Request().Context())
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	buckets := make([]auditBucketResp, 0, len(rep.Buckets))
	for _, b := range rep.Buckets {
		buckets = append(buckets, auditBucketResp{GuessRank: b.Rank, Count: b.Count})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total":   rep.Total,
		"ranked":  rep.Ranked,
		"top1":    rep.Top1,
		"counts":  rep.Counts(),
		"buckets": buckets,
	})
}
