package middleware

import (
	"FaceDetection/pkg/response"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "Too many requests")
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than idleTTL are swept, at most once per idleTTL.
type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
	mutex     *sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int, idleTTL time.Duration) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
		mutex:     &sync.Mutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if r.idleTTL > 0 && now.Sub(r.lastSweep) >= r.idleTTL {
		r.sweep(now)
	}

	v, exist := r.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = now

	return v.limiter
}

// sweep drops buckets idle for longer than idleTTL. Callers hold the mutex.
func (r *rateLimiter) sweep(now time.Time) {
	for ip, v := range r.bucket {
		if now.Sub(v.lastSeen) > r.idleTTL {
			delete(r.bucket, ip)
		}
	}
	r.lastSweep = now
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.bucket)
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	if m.rateLimitter == nil {
		return ctx.Next()
	}

	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.Warnf("too many requests for IP %s", clientIP)
		return ctx.Status(fiber.StatusTooManyRequests).JSON(response.NewBody(
			ErrTooManyRequests.Error(), "TOO_MANY_REQUESTS", m.GetRequestID(ctx)))
	}

	return ctx.Next()
}
