// Package importer loads cities, cinemas and legacy hints from JSON
// files.  Hints go through the regular submission path, so imported
// hints are validated and ranked like submitted ones.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/service"
)

// CityStore is the city table as the importer uses it.
type CityStore interface {
	FindByName(ctx context.Context, name string) (*model.City, error)
	Create(ctx context.Context, c *model.City) error
}

// CinemaStore is the cinema table as the importer uses it.
type CinemaStore interface {
	FindByNameAndCity(ctx context.Context, name, city string) (*model.Cinema, error)
	Create(ctx context.Context, c *model.Cinema) error
}

// Submitter records hints; *service.HintService implements it.
type Submitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*model.Hint, error)
}

// Importer holds the stores an import writes to.
type Importer struct {
	Cities  CityStore
	Cinemas CinemaStore
	Hints   Submitter
	Log     *logrus.Logger
}

func New(cities CityStore, cinemas CinemaStore, hints Submitter, log *logrus.Logger) *Importer {
	return &Importer{Cities: cities, Cinemas: cinemas, Hints: hints, Log: log}
}

// DirectoryStats summarizes a directory import.
type DirectoryStats struct {
	CitiesCreated  int
	CinemasCreated int
	Existing       int
}

// ImportDirectory reads {"City": ["Cinema", ...], ...} and creates the
// missing cities and cinemas.  Existing entries are left alone, so the
// import can be re-run.
func (im *Importer) ImportDirectory(ctx context.Context, r io.Reader) (DirectoryStats, error) {
	var stats DirectoryStats
	var dir map[string][]string
	if err := json.NewDecoder(r).Decode(&dir); err != nil {
		return stats, fmt.Errorf("decode directory: %w", err)
	}
	names := make([]string, 0, len(dir))
	for name := range dir {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		city, created, err := im.ensureCity(ctx, name)
		if err != nil {
			return stats, err
		}
		if created {
			stats.CitiesCreated++
		} else {
			stats.Existing++
		}
		for _, cinemaName := range dir[name] {
			cinemaName = strings.TrimSpace(cinemaName)
			if cinemaName == "" {
				continue
			}
			err := im.Cinemas.Create(ctx, &model.Cinema{CityID: city.ID, Name: cinemaName})
			switch {
			case err == nil:
				stats.CinemasCreated++
			case errors.Is(err, repository.ErrConflict):
				stats.Existing++
			default:
				return stats, fmt.Errorf("create cinema %q in %q: %w", cinemaName, city.Name, err)
			}
		}
	}
	im.Log.WithFields(logrus.Fields{
		"cities_created":  stats.CitiesCreated,
		"cinemas_created": stats.CinemasCreated,
		"existing":        stats.Existing,
	}).Info("directory imported")
	return stats, nil
}

func (im *Importer) ensureCity(ctx context.Context, name string) (*model.City, bool, error) {
	name = strings.TrimSpace(name)
	city, err := im.Cities.FindByName(ctx, name)
	if err == nil {
		return city, false, nil
	}
	if !errors.Is(err, repository.ErrCityNotFound) {
		return nil, false, fmt.Errorf("find city %q: %w", name, err)
	}
	city = &model.City{Name: name}
	if err := im.Cities.Create(ctx, city); err != nil {
		return nil, false, fmt.Errorf("create city %q: %w", name, err)
	}
	return city, true, nil
}

// LegacyHint is one record of the legacy hint export.
type LegacyHint struct {
	Date   string `json:"date"`   // dd-MM-yyyy
	Cinema string `json:"cinema"` // "Cinema, City"
	IMDbID string `json:"imdbId"`
	Start  string `json:"start"` // dd.MM.yyyy, unused: release dates come from the provider
}

// HintStats summarizes a hint import.
type HintStats struct {
	Recorded   int
	Duplicates int
	Rejected   map[string]int // by reason code
	Failed     int
}

const legacyDateLayout = "02-01-2006"

// ImportHints reads a JSON array of LegacyHint and submits each record.
// Rejections and failures of single records are logged and counted;
// only a malformed file aborts the import.
func (im *Importer) ImportHints(ctx context.Context, r io.Reader) (HintStats, error) {
	stats := HintStats{Rejected: map[string]int{}}
	var records []LegacyHint
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return stats, fmt.Errorf("decode hints: %w", err)
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		log := im.Log.WithFields(logrus.Fields{"record": i, "cinema": rec.Cinema, "imdb_id": rec.IMDbID, "date": rec.Date})

		req, err := im.toRequest(ctx, rec)
		if err == nil {
			_, err = im.Hints.Submit(ctx, req)
		}
		switch reason := service.Reason(err); {
		case err == nil:
			stats.Recorded++
		case errors.Is(err, service.ErrAlreadyRecorded):
			stats.Duplicates++
		case reason != "":
			stats.Rejected[reason]++
			log.WithField("reason", reason).Warn("hint skipped")
		default:
			stats.Failed++
			log.WithError(err).Error("hint import failed")
		}
	}
	im.Log.WithFields(logrus.Fields{
		"recorded":   stats.Recorded,
		"duplicates": stats.Duplicates,
		"rejected":   stats.Rejected,
		"failed":     stats.Failed,
	}).Info("hints imported")
	return stats, nil
}

// toRequest maps a legacy record onto a submission.  Unknown cinemas and
// bad dates become the matching submission rejections.
func (im *Importer) toRequest(ctx context.Context, rec LegacyHint) (service.SubmitRequest, error) {
	name, city, ok := splitCinema(rec.Cinema)
	if !ok {
		return service.SubmitRequest{}, service.ErrUnknownCinema
	}
	cinema, err := im.Cinemas.FindByNameAndCity(ctx, name, city)
	if err != nil {
		if errors.Is(err, repository.ErrCinemaNotFound) {
			return service.SubmitRequest{}, service.ErrUnknownCinema
		}
		return service.SubmitRequest{}, err
	}
	day, err := time.Parse(legacyDateLayout, strings.TrimSpace(rec.Date))
	if err != nil {
		return service.SubmitRequest{}, service.ErrMalformedDate
	}
	return service.SubmitRequest{
		CinemaID:   cinema.ID,
		ReportDate: day.Format("2006-01-02"),
		MovieRef:   strings.TrimSpace(rec.IMDbID),
	}, nil
}

// splitCinema splits "Cinema, City" at the last ", ", so cinema names
// may contain commas.
func splitCinema(s string) (name, city string, ok bool) {
	i := strings.LastIndex(s, ", ")
	if i <= 0 {
		return "", "", false
	}
	name, city = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+2:])
	return name, city, name != "" && city != ""
}
