// Package app wires the storage, provider and service layers shared by
// the server and the maintenance binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/config"
	"github.com/iliyamo/sneak-radar/internal/database"
	"github.com/iliyamo/sneak-radar/internal/ranking"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/service"
	"github.com/iliyamo/sneak-radar/internal/tmdb"
)

// Core holds the repositories and services over one database handle.
type Core struct {
	DB      *sql.DB
	Cities  *repository.CityRepo
	Cinemas *repository.CinemaRepo
	Movies  *repository.MovieRepo
	Hints   service.HintStore

	Reconciler *service.Reconciler
	Engine     *ranking.Engine
	HintSvc    *service.HintService
	VoteSvc    *service.VoteService
	AuditSvc   *service.AuditService
	Sweeper    *service.Sweeper
}

// Open connects to the database, applies the schema and builds the core
// services.  events may be nil.
func Open(ctx context.Context, log *logrus.Logger, events service.EventPublisher) (*Core, error) {
	dbCfg := config.LoadDB()
	db, err := database.Open(dbCfg.User, dbCfg.Pass, dbCfg.Host, dbCfg.Port, dbCfg.Name)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	tc := config.LoadTMDBConfig()
	provider := tmdb.NewClient(tmdb.Config{
		APIKey:   tc.APIKey,
		BaseURL:  tc.BaseURL,
		Language: tc.Language,
		Timeout:  tc.Timeout,
		RPS:      tc.RPS,
		Burst:    tc.Burst,
	}, &http.Client{}, log)

	hints := repository.NewHintRepo(db)
	c := &Core{
		DB:      db,
		Cities:  repository.NewCityRepo(db),
		Cinemas: repository.NewCinemaRepo(db),
		Movies:  repository.NewMovieRepo(db),
		Hints:   service.NewHintStore(hints),
	}
	c.Reconciler = service.NewReconciler(c.Movies, provider, tc.Region, tc.Timeout, log)
	c.Engine = ranking.NewEngine(hints, config.LoadSneakPolicy())
	c.HintSvc = service.NewHintService(c.Cinemas, c.Movies, c.Hints, c.Reconciler, c.Engine, events, log)
	c.VoteSvc = service.NewVoteService(c.Hints, events, log)
	c.AuditSvc = service.NewAuditService(c.Hints)
	c.Sweeper = service.NewSweeper(c.Movies, c.Reconciler, log)
	return c, nil
}

// Close releases the database handle.
func (c *Core) Close() error { return c.DB.Close() }
