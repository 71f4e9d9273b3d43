package middleware

import (
	contextPkg "FaceDetection/pkg/context"
	"FaceDetection/pkg/env"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultRateLimitIdleTTL = 3 * time.Minute

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

// RateLimitConfig configures the per-IP token bucket. A disabled limiter lets
// every request through. Buckets unused for IdleTTL are forgotten.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

func RateLimitConfigFromEnv() RateLimitConfig {
	return RateLimitConfig{
		Enabled: env.Bool("RATE_LIMIT_ENABLED", false),
		RPS:     env.Float("RATE_LIMIT_RPS", 50),
		Burst:   env.Int("RATE_LIMIT_BURST", 100),
		IdleTTL: env.Duration("RATE_LIMIT_IDLE_TTL", DefaultRateLimitIdleTTL),
	}
}

type middleware struct {
	rateLimitter        *rateLimiter
	loggingMiddleware   fiber.Handler
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, limits RateLimitConfig) Middleware {
	var limiter *rateLimiter
	if limits.Enabled {
		idleTTL := limits.IdleTTL
		if idleTTL <= 0 {
			idleTTL = DefaultRateLimitIdleTTL
		}
		limiter = newRateLimiter(rate.Limit(limits.RPS), limits.Burst, idleTTL)
	}

	return &middleware{
		rateLimitter:        limiter,
		loggingMiddleware:   LoggerConfig(logger),
		requestIDMiddleware: NewRequestIDMiddleware(),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return contextPkg.UnknownRequestID
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return m.loggingMiddleware
}
