package httpwire

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/karloscodes/httpwire/httperr"
)

// StatusOf maps an error to the HTTP status it should produce. fiber errors keep
// their code, parsing errors map through httperr.Status, everything else is 500.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return httperr.Status(err)
}

// DefaultErrorHandler returns JSON for clients that accept it and plain text
// otherwise. Client errors log at warn, server errors at error. Outside
// development, messages of server errors are replaced by the status name.
func DefaultErrorHandler(logger *slog.Logger, isDev bool) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(c *fiber.Ctx, err error) error {
		code := StatusOf(err)

		level := slog.LevelWarn
		if code >= fiber.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.UserContext(), level, "request failed",
			slog.Any("error", err),
			slog.String("kind", httperr.KindOf(err).String()),
			slog.String("path", c.Path()),
			slog.String("method", c.Method()),
			slog.Int("status", code),
		)

		message := err.Error()
		if code >= fiber.StatusInternalServerError && !isDev {
			message = ErrorCodeName(code)
		}

		if c.Accepts(fiber.MIMETextPlain, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
			return c.Status(code).JSON(fiber.Map{
				"error":   ErrorCodeName(code),
				"message": message,
			})
		}
		return c.Status(code).SendString(ErrorCodeName(code) + ": " + message)
	}
}

// ErrorCodeName returns a human-readable name for common HTTP status codes.
func ErrorCodeName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusUnauthorized:
		return "Unauthorized"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusPreconditionFailed:
		return "Precondition Failed"
	case fiber.StatusRequestEntityTooLarge:
		return "Payload Too Large"
	case fiber.StatusTooManyRequests:
		return "Too Many Requests"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	case fiber.StatusBadGateway:
		return "Bad Gateway"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Error"
	}
}
