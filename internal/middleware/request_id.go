package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// Fiber locals shared between the middlewares and the API handlers
const (
	LocalRequestID = "requestid"
	LocalTable     = "criteria_table"
	LocalMatched   = "criteria_matched"
)

// RequestID returns a middleware that tags every request with a UUID, keeping
// an incoming X-Request-ID header when present
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: LocalRequestID,
	})
}

// GetRequestID extracts the request ID from the Fiber context.
// It first checks the requestid local, then falls back to the X-Request-ID header.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalRequestID).(string); ok && id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
