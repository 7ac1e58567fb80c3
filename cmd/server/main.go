package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/app"
	"github.com/iliyamo/sneak-radar/internal/config"
	"github.com/iliyamo/sneak-radar/internal/handler"
	"github.com/iliyamo/sneak-radar/internal/logger"
	"github.com/iliyamo/sneak-radar/internal/middleware"
	"github.com/iliyamo/sneak-radar/internal/queue"
	"github.com/iliyamo/sneak-radar/internal/repository"
	"github.com/iliyamo/sneak-radar/internal/router"
	"github.com/iliyamo/sneak-radar/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := service.NewAMQPPublisher(cfg.RabbitURL)
	core, err := app.Open(ctx, log, events)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer func() { _ = core.Close() }()

	rdb := config.NewRedisClient(log)
	cacheCfg := config.LoadCacheConfig()

	if cfg.RabbitURL != "" {
		journal, err := openJournal(filepath.Join("logs", "hints.log"))
		if err != nil {
			log.WithError(err).Fatal("open hint journal")
		}
		defer func() { _ = journal.Close() }()
		var inv queue.Invalidator
		if ri := middleware.NewRedisInvalidator(cacheCfg, rdb); ri != nil {
			inv = ri
		}
		consumer := queue.NewConsumer(cfg.RabbitURL, inv, journal, log)
		go func() { _ = consumer.Run(ctx) }()
	}
	if cfg.SweepInterval > 0 {
		go core.Sweeper.Start(ctx, cfg.SweepInterval)
	}

	e := router.New(router.Deps{
		Cfg:       cfg,
		Log:       log,
		DB:        core.DB,
		Redis:     rdb,
		Cache:     cacheCfg,
		RateLimit: config.LoadRateLimitConfig(),
		Hints:     handler.NewHintHandler(core.HintSvc, core.VoteSvc, core.AuditSvc, log),
		Public:    handler.NewPublicHandler(core.Cities, core.Cinemas, log),
		Admin:     handler.NewAdminHandler(core.Cities, core.Cinemas, core.Reconciler, core.Sweeper, log),
		Auth:      handler.NewAuthHandler(cfg, repository.NewUserRepo(core.DB), repository.NewTokenRepo(core.DB), log),
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func openJournal(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
