package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"simplenotes/internal/config"
	"simplenotes/internal/database"
	"simplenotes/internal/database/repositories"
	"simplenotes/internal/logger"
	"simplenotes/internal/server"
)

const shutdownTimeout = 5 * time.Second

func gracefulShutdown(ctx context.Context, app *server.FiberServer, db database.Service, done chan<- struct{}) {
	<-ctx.Done()

	logrus.Info("shutting down gracefully")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logrus.WithError(err).Error("server forced to shutdown")
	}
	db.Close()

	logrus.Info("server exiting")
	done <- struct{}{}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db := database.New(ctx, cfg.Database, registry)
	go db.Run(ctx)

	app := server.New(cfg, db, repositories.NewNoteRepository(db), registry)
	app.RegisterFiberRoutes()

	done := make(chan struct{}, 1)
	go gracefulShutdown(ctx, app, db, done)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logrus.WithFields(logrus.Fields{
		"addr":        addr,
		"environment": cfg.Server.Env,
	}).Info("server starting")
	if err := app.Listen(addr); err != nil {
		logrus.WithError(err).Fatal("http server error")
	}

	<-done
}
