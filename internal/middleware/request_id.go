package middleware

import (
	contextPkg "FaceDetection/pkg/context"
	"FaceDetection/pkg/utils"
	"time"

	"github.com/gofiber/fiber/v2"
)

const RequestIDKey = contextPkg.HeaderRequestID

// NewRequestIDMiddleware reuses an incoming X-Request-ID or mints a ULID, and
// echoes it on the response. The id is also stored on the user context.
func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if requestID == "" {
			requestID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)
		c.SetUserContext(contextPkg.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}
