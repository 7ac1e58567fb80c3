// Command import loads a city/cinema directory and legacy hints from
// JSON files.
//
//    import -directory cinemas.json -hints hints.json
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/iliyamo/sneak-radar/internal/app"
	"github.com/iliyamo/sneak-radar/internal/importer"
	"github.com/iliyamo/sneak-radar/internal/logger"
)

func main() {
	dirPath := flag.String("directory", "", `JSON file {"City": ["Cinema", ...]}`)
	hintsPath := flag.String("hints", "", "JSON file with legacy hint records")
	level := flag.String("log-level", "info", "logrus level")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init(*level, os.Getenv("LOG_FORMAT"))
	log := logger.Get()

	if *dirPath == "" && *hintsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	core, err := app.Open(ctx, log, nil)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer func() { _ = core.Close() }()

	im := importer.New(core.Cities, core.Cinemas, core.HintSvc, log)

	if *dirPath != "" {
		f, err := os.Open(*dirPath)
		if err != nil {
			log.WithError(err).Fatal("open directory file")
		}
		_, err = im.ImportDirectory(ctx, f)
		_ = f.Close()
		if err != nil {
			log.WithError(err).Fatal("directory import failed")
		}
	}
	if *hintsPath != "" {
		f, err := os.Open(*hintsPath)
		if err != nil {
			log.WithError(err).Fatal("open hints file")
		}
		_, err = im.ImportHints(ctx, f)
		_ = f.Close()
		if err != nil {
			log.WithError(err).Fatal("hint import failed")
		}
	}
}
