// Command reconcile runs one catalog sweep, or refreshes the movies given
// as arguments, and exits.
package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/app"
	"github.com/iliyamo/sneak-radar/internal/logger"
)

func main() {
	level := flag.String("log-level", "info", "logrus level")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall deadline")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init(*level, os.Getenv("LOG_FORMAT"))
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	core, err := app.Open(ctx, log, nil)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer func() { _ = core.Close() }()

	if flag.NArg() == 0 {
		stats, err := core.Sweeper.Run(ctx)
		if err != nil {
			log.WithError(err).Fatal("sweep failed")
		}
		if stats.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	failed := false
	for _, arg := range flag.Args() {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil || id == 0 {
			log.WithField("arg", arg).Error("not a TMDB id")
			failed = true
			continue
		}
		m, err := core.Reconciler.Resolve(ctx, id)
		if err != nil {
			log.WithError(err).WithField("tmdb_id", id).Error("refresh failed")
			failed = true
			continue
		}
		log.WithFields(logrus.Fields{"tmdb_id": m.TMDBID, "name": m.Name}).Info("movie refreshed")
	}
	if failed {
		os.Exit(1)
	}
}
