package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"simplenotes/internal/database"
	"simplenotes/internal/database/repositories"
)

// requestError is a client mistake in the path or body.
type requestError struct {
	msg     string
	details map[string]string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string, details map[string]string) error {
	return &requestError{msg: msg, details: details}
}

func (s *FiberServer) errorHandler(c *fiber.Ctx, err error) error {
	var (
		reqErr   *requestError
		fiberErr *fiber.Error
	)

	switch {
	case errors.Is(err, repositories.ErrNoteNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Note not found"})

	case errors.As(err, &reqErr):
		body := fiber.Map{"error": reqErr.msg}
		if len(reqErr.details) > 0 {
			body["details"] = reqErr.details
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)

	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})

	case database.IsConnectionError(err):
		logrus.WithError(err).WithField("path", c.Path()).Error("database unavailable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "Database service unavailable",
			"message": "The server is temporarily unable to connect to the database. Please try again later.",
		})
	}

	logrus.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
	body := fiber.Map{"error": "An unexpected server error occurred"}
	if !s.cfg.IsProduction() {
		body["details"] = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}
