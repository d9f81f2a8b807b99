package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"qa-portal/internal/auth"
	"qa-portal/internal/config"
	"qa-portal/internal/engine"
	"qa-portal/internal/instrument"
	"qa-portal/internal/storage"
	"qa-portal/internal/store"
	"qa-portal/internal/tree"
)

// server is the assembled HTTP application and the resources it owns.
type server struct {
	app    *fiber.App
	store  *store.Store
	events *instrument.EventBuffer
	access io.Closer
	log    *logrus.Logger
}

func newServer(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*server, error) {
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	log.WithField("driver", db.Driver()).Info("database ready")

	files, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	policy, err := engine.NewUploadPolicy(cfg.Upload.Rules, cfg.Storage.MaxFileSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	authHandler, err := auth.NewAuthHandler(db, cfg.Auth, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *instrument.Metrics
	if cfg.Metrics.Enabled {
		metrics = instrument.NewMetrics(reg)
	}

	s := &server{store: db, log: log}
	var recorder instrument.Recorder = instrument.Noop{}
	if cfg.Audit.Enabled {
		s.events = instrument.NewEventBuffer(db, log, cfg.Audit.BufferSize,
			time.Duration(cfg.Audit.FlushIntervalMs)*time.Millisecond)
		recorder = s.events
	}

	h := engine.NewHandler(engine.Deps{
		Store:    db,
		Loader:   tree.NewLoader(tree.FromStore(db), log),
		Uploader: engine.NewUploader(files, policy, metrics),
		Files:    files,
		Events:   recorder,
		Metrics:  metrics,
		Logger:   log,
	})

	access := log.WriterLevel(logrus.InfoLevel)
	s.access = access

	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler(log),
		BodyLimit:    cfg.Server.BodyLimit,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: access,
	}))
	app.Use(instrument.Middleware(metrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		app.Get(cfg.Metrics.Path, instrument.Handler(reg))
	}

	auth.RegisterAuthRoutes(app, authHandler,
		auth.LoginLimiter(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow))

	admin := engine.RegisterRoutes(app, h, auth.AuthMiddleware(cfg.Auth.JWTSecret), auth.RequireAdmin())
	admin.Get("/events", instrument.NewEventsHandler(db).List)

	s.app = app
	return s, nil
}

// housekeeping trims the audit trail and expired refresh tokens until ctx ends.
func (s *server) housekeeping(ctx context.Context, retentionDays int) {
	instrument.RunPeriodic(ctx, time.Hour, func(ctx context.Context) {
		if retentionDays > 0 {
			instrument.CleanupOldEvents(ctx, s.store, s.log, retentionDays)
		}
		n, err := s.store.DeleteExpiredRefreshTokens(ctx, s.store.DB, time.Now())
		if err != nil {
			s.log.WithError(err).Error("refresh token cleanup")
			return
		}
		if n > 0 {
			s.log.WithField("deleted", n).Info("refresh token cleanup")
		}
	})
}

func (s *server) close() {
	if s.events != nil {
		s.events.Stop()
	}
	s.access.Close()
	s.store.Close()
}
