package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"qa-portal/internal/config"
	"qa-portal/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("QA_CONFIG"))
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}
	log.WithFields(logrus.Fields{
		"port":     cfg.Server.Port,
		"database": cfg.Database.Driver,
		"storage":  cfg.Storage.Driver,
	}).Info("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer srv.close()

	go srv.housekeeping(ctx, cfg.Audit.RetentionDays)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("Starting server on %s", addr)
	if err := srv.app.Listen(addr); err != nil {
		log.WithError(err).Error("server stopped")
	}
}
