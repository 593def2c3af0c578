package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const ReqIDKey = "reqID"

// RequestID echoes a caller supplied X-Request-ID when it looks sane,
// otherwise it mints a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(fiber.HeaderXRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.New().String()
		}
		c.Set(fiber.HeaderXRequestID, rid)
		c.Locals(ReqIDKey, rid)
		return c.Next()
	}
}
