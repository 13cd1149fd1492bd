package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

// HeaderRequestID cabecera con el id de la petición.
const HeaderRequestID = "X-Request-ID"

// LocalRequestID key del id de petición en c.Locals.
const LocalRequestID = "request_id"

// RequestID reutiliza el X-Request-ID entrante o genera uno nuevo.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalRequestID, id)
		c.Set(HeaderRequestID, id)
		return c.Next()
	}
}

// AccessLog registra una línea por petición con método, ruta, estado y duración.
func AccessLog(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Error()
		}
		rid, _ := c.Locals(LocalRequestID).(string)
		ev.Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("petición HTTP")
		return err
	}
}
