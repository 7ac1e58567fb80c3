// Package ranking turns hint evidence from other cinemas into a
// confidence-ordered list of movies a cinema is likely to show as its
// next sneak preview.
//
// The aggregation is a pure function (Rank) over plain records so it can
// be tested without a database.  Engine binds it to an EvidenceSource
// such as the MySQL hint repository.
package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/iliyamo/sneak-radar/internal/model"
)

// Evidence is one hint joined with the release date of its movie.
type Evidence struct {
	HintID      uint64
	CinemaID    uint64
	MovieID     uint64
	MovieName   string
	ReportDate  time.Time
	Score       int
	ReleaseDate time.Time
}

// Guess is one ranked candidate.
type Guess struct {
	MovieID     uint64
	MovieName   string
	ReleaseDate time.Time
	Confidence  float64
	DaysTill    int
	Hints       int
	AvgAge      float64
}

// Policy holds the tunable parts of the ranking.
//
// confidence = n^CountExp / (daysTill^DaysTillExp * avgAge^AgeExp)
type Policy struct {
	WindowDays  int
	Limit       int
	CountExp    float64
	DaysTillExp float64
	AgeExp      float64
}

// DefaultPolicy is n / (sqrt(daysTill) * avgAge) over a 100 day window,
// top 10.
func DefaultPolicy() Policy {
	return Policy{
		WindowDays:  100,
		Limit:       10,
		CountExp:    1,
		DaysTillExp: 0.5,
		AgeExp:      1,
	}
}

// Query describes which evidence counts for one ranking.
//
// Hints qualify when From <= report date < To, or <= To when IncludeTo
// is set.  Movies qualify when released strictly after AsOf.
type Query struct {
	CinemaID  uint64
	AsOf      time.Time
	From      time.Time
	To        time.Time
	IncludeTo bool
}

// LiveQuery is the ranking shown to users: hints of the last windowDays
// days including today.
func LiveQuery(cinemaID uint64, today time.Time, windowDays int) Query {
	today = model.DateOnly(today)
	return Query{
		CinemaID:  cinemaID,
		AsOf:      today,
		From:      today.AddDate(0, 0, -windowDays),
		To:        today,
		IncludeTo: true,
	}
}

// PriorQuery is the ranking as it looked before a hint for reportDate
// was submitted.  Only evidence strictly before the report date counts.
func PriorQuery(cinemaID uint64, reportDate time.Time, windowDays int) Query {
	reportDate = model.DateOnly(reportDate)
	return Query{
		CinemaID: cinemaID,
		AsOf:     reportDate,
		From:     reportDate.AddDate(0, 0, -windowDays),
		To:       reportDate,
	}
}

// Contains reports whether a hint reported on day falls into the window.
func (q Query) Contains(day time.Time) bool {
	day = model.DateOnly(day)
	from, to := model.DateOnly(q.From), model.DateOnly(q.To)
	if day.Before(from) {
		return false
	}
	if q.IncludeTo {
		return !day.After(to)
	}
	return day.Before(to)
}

type aggregate struct {
	movieID     uint64
	name        string
	releaseDate time.Time
	hints       int
	ageSum      int
}

// Rank aggregates evidence per movie and orders the candidates by
// confidence.  reported holds every movie the target cinema has hinted
// at any time; those movies never appear in the result.
//
// Candidates whose confidence is undefined (release today or in the past,
// average age zero, non-finite result) are dropped.  Ties keep the order
// in which movies first appear in evidence.
func Rank(q Query, evidence []Evidence, reported map[uint64]struct{}, p Policy) []Guess {
	asOf := model.DateOnly(q.AsOf)
	byMovie := make(map[uint64]*aggregate)
	order := make([]*aggregate, 0)

	for _, e := range evidence {
		if e.CinemaID == q.CinemaID || e.Score < 0 {
			continue
		}
		if _, seen := reported[e.MovieID]; seen {
			continue
		}
		if !q.Contains(e.ReportDate) {
			continue
		}
		if !model.DateOnly(e.ReleaseDate).After(asOf) {
			continue
		}
		agg, ok := byMovie[e.MovieID]
		if !ok {
			agg = &aggregate{movieID: e.MovieID, name: e.MovieName, releaseDate: model.DateOnly(e.ReleaseDate)}
			byMovie[e.MovieID] = agg
			order = append(order, agg)
		}
		agg.hints++
		agg.ageSum += model.DaysBetween(e.ReportDate, asOf)
	}

	out := make([]Guess, 0, len(order))
	for _, agg := range order {
		daysTill := model.DaysBetween(asOf, agg.releaseDate)
		avgAge := float64(agg.ageSum) / float64(agg.hints)
		conf, ok := p.confidence(agg.hints, daysTill, avgAge)
		if !ok {
			continue
		}
		out = append(out, Guess{
			MovieID:     agg.movieID,
			MovieName:   agg.name,
			ReleaseDate: agg.releaseDate,
			Confidence:  conf,
			DaysTill:    daysTill,
			Hints:       agg.hints,
			AvgAge:      avgAge,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out
}

func (p Policy) confidence(n, daysTill int, avgAge float64) (float64, bool) {
	if n <= 0 || daysTill <= 0 || avgAge <= 0 {
		return 0, false
	}
	c := math.Pow(float64(n), p.CountExp) /
		(math.Pow(float64(daysTill), p.DaysTillExp) * math.Pow(avgAge, p.AgeExp))
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, false
	}
	return c, true
}

// PositionOf returns the frozen guess rank of movieID within guesses.
func PositionOf(guesses []Guess, movieID uint64) model.GuessRank {
	for i, g := range guesses {
		if g.MovieID == movieID {
			return model.RankedAt(i + 1)
		}
	}
	return model.GuessRankNotInTop
}
