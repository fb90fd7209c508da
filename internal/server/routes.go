package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"simplenotes/internal/database/dto"
	"simplenotes/internal/utils"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/", s.bannerHandler)
	s.App.Get("/health", s.healthHandler)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.App.Group("/api")
	api.Get("/", s.bannerHandler)
	api.Get("/health", s.healthHandler)

	api.Get("/notes", s.getNotes)
	api.Get("/notes/archived", s.getArchivedNotes)
	api.Post("/notes", s.createNote)
	api.Put("/notes/:id", s.updateNote)
	api.Delete("/notes/:id", s.deleteNote)
	api.Patch("/notes/:id/archive", s.archiveNote)
	api.Patch("/notes/:id/pin", s.pinNote)

	s.App.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not found",
			"message": "The requested endpoint " + c.Path() + " does not exist",
			"path":    c.Path(),
		})
	})
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	stats := s.db.Health(c.UserContext())
	if stats["status"] != "up" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "ERROR",
			"timestamp": time.Now(),
			"database":  "disconnected",
			"error":     stats["error"],
		})
	}
	return c.JSON(fiber.Map{
		"status":      "OK",
		"timestamp":   time.Now(),
		"database":    "connected",
		"dbTime":      stats["db_time"],
		"environment": s.cfg.Server.Env,
		"pool":        stats,
	})
}

func (s *FiberServer) bannerHandler(c *fiber.Ctx) error {
	databaseStatus := "disconnected"
	if s.db.Health(c.UserContext())["status"] == "up" {
		databaseStatus = "connected"
	}
	return c.JSON(fiber.Map{
		"status":         "SimpleNotes API is running",
		"timestamp":      time.Now(),
		"databaseStatus": databaseStatus,
		"version":        version,
	})
}

func (s *FiberServer) getNotes(c *fiber.Ctx) error {
	notes, err := s.notes.GetActive(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(notes)
}

func (s *FiberServer) getArchivedNotes(c *fiber.Ctx) error {
	notes, err := s.notes.GetArchived(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(notes)
}

func (s *FiberServer) createNote(c *fiber.Ctx) error {
	req := dto.CreateNote{}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	note := req.Note()
	if err := s.notes.Create(c.UserContext(), &note); err != nil {
		return err
	}
	logrus.WithField("id", note.ID).Info("note created")
	return c.Status(fiber.StatusCreated).JSON(note)
}

func (s *FiberServer) updateNote(c *fiber.Ctx) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	req := dto.UpdateNote{}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	note := req.Note(id)
	if err := s.notes.Update(c.UserContext(), &note); err != nil {
		return err
	}
	return c.JSON(note)
}

func (s *FiberServer) deleteNote(c *fiber.Ctx) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(c.UserContext(), id); err != nil {
		return err
	}
	logrus.WithField("id", id).Info("note deleted")
	return c.JSON(fiber.Map{
		"message": "Note deleted successfully",
		"id":      id,
	})
}

func (s *FiberServer) archiveNote(c *fiber.Ctx) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	req := dto.ArchiveNote{}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	note, err := s.notes.SetArchived(c.UserContext(), id, *req.Archived)
	if err != nil {
		return err
	}
	return c.JSON(note)
}

func (s *FiberServer) pinNote(c *fiber.Ctx) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	req := dto.PinNote{}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	note, err := s.notes.SetPinned(c.UserContext(), id, *req.IsPinned)
	if err != nil {
		return err
	}
	return c.JSON(note)
}

func noteID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, badRequest("invalid note ID", nil)
	}
	return int64(id), nil
}

// parseBody decodes and validates a JSON body. An empty body decodes as {}.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return badRequest("invalid request body", nil)
		}
	}
	if err := utils.ValidateStruct(out); err != nil {
		return badRequest("invalid request body", utils.FieldErrors(err))
	}
	return nil
}
