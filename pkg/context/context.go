package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const (
	// HeaderRequestID carries the request id on requests and responses, and
	// keys it in fiber locals.
	HeaderRequestID = "X-Request-ID"

	// RequestIDKey keys the request id in a context.Context and in log fields.
	RequestIDKey = "request_id"

	UnknownRequestID = "unknown"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return UnknownRequestID
	}
	return requestID
}

// FromFiberCtx derives a request context from the fiber user context, carrying
// the request id set by the request id middleware.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()

	requestID, ok := c.Locals(HeaderRequestID).(string)
	if !ok || requestID == "" {
		requestID = c.Get(HeaderRequestID)

		if requestID == "" {
			requestID = UnknownRequestID
		}
	}

	return WithRequestID(ctx, requestID)
}
