package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/karloscodes/httpwire/httperr"
)

// RequestLogger emits one structured log line per request. Server errors log at
// error level, client errors at warn. Health check endpoints (/_health) are not
// logged.
func RequestLogger(logger Logger) fiber.Handler {
	logger = loggerOrNop(logger)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		if strings.HasPrefix(path, "/_health") {
			return err
		}

		status := c.Response().StatusCode()
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			status = fe.Code
		case err != nil:
			status = httperr.Status(err)
		}

		attrs := []any{
			"method", c.Method(),
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"bytes", len(c.Response().Body()),
			"ip", c.IP(),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			attrs = append(attrs, "request_id", id)
		}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("http request", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("http request", attrs...)
		default:
			logger.Info("http request", attrs...)
		}
		return err
	}
}
