package middleware

import (
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/emandor/mailsift/internal/config"
	"github.com/emandor/mailsift/internal/telemetry"
)

func RequestLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		rid, _ := c.Locals(ReqIDKey).(string)
		log := telemetry.L().With().Str("req_id", rid).Logger()
		log.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("took", time.Since(start)).
			Str("ip", c.IP()).
			Msg("http_request")
		return err
	}
}

func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				rid, _ := c.Locals(ReqIDKey).(string)
				log := telemetry.L().With().Str("req_id", rid).Logger()
				log.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("panic_recovered")
				err = c.Status(fiber.StatusInternalServerError).SendString("internal error")
			}
		}()
		return c.Next()
	}
}

func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.CORSOrigins, ","),
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, X-Request-ID",
		ExposeHeaders: "Content-Disposition, X-Request-ID, X-Mailsift-Action, X-Mailsift-Status, X-Mailsift-Messages",
		MaxAge:        86400,
	})
}
