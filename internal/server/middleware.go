package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// requestLogger logs one entry per request. Errors from the chain are
// rendered here so the logged status is the one the client receives.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		entry := logrus.WithFields(logrus.Fields{
			"status_code": status,
			"latency":     time.Since(start).String(),
			"client_ip":   c.IP(),
			"method":      c.Method(),
			"path":        c.Path(),
			"request_id":  c.GetRespHeader(fiber.HeaderXRequestID),
		})
		if chainErr != nil {
			entry = entry.WithError(chainErr)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("HTTP request")
		case status >= fiber.StatusBadRequest:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
		return nil
	}
}
