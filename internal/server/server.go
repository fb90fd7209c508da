package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"simplenotes/internal/config"
	"simplenotes/internal/database"
	"simplenotes/internal/database/repositories"
)

const version = "1.0.0"

type FiberServer struct {
	*fiber.App

	cfg      *config.Config
	db       database.Service
	notes    repositories.NoteRepository
	registry prometheus.Gatherer
}

func New(cfg *config.Config, db database.Service, notes repositories.NoteRepository, registry prometheus.Gatherer) *FiberServer {
	server := &FiberServer{
		cfg:      cfg,
		db:       db,
		notes:    notes,
		registry: registry,
	}
	server.App = fiber.New(fiber.Config{
		ServerHeader: "simplenotes",
		AppName:      "simplenotes",
		ErrorHandler: server.errorHandler,
	})

	server.App.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	server.App.Use(requestLogger())
	server.App.Use(recover.New(recover.Config{
		EnableStackTrace: !cfg.IsProduction(),
	}))
	server.App.Use(favicon.New())
	server.App.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-CSRF-Token",
		AllowCredentials: !allowsAnyOrigin(cfg.Server.AllowOrigins),
		MaxAge:           3600,
	}))
	if !cfg.IsProduction() {
		server.App.Use(pprof.New())
	}
	return server
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
