package httpmiddleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-key fixed window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window duration.
	Window time.Duration
	// KeyFunc derives the limiter key from a request. Defaults to client IP.
	KeyFunc func(*http.Request) string
}

type window struct {
	count int
	start time.Time
}

type rateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
}

// allow reports whether the request identified by key may proceed, along with
// the remaining allowance and the time the window resets.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, allowed bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.cfg.Window {
		w = &window{start: now}
		rl.windows[key] = w
	}
	resetAt = w.start.Add(rl.cfg.Window)

	if w.count >= rl.cfg.Max {
		return 0, resetAt, false
	}
	w.count++
	return rl.cfg.Max - w.count, resetAt, true
}

func (rl *rateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.windows {
		if now.Sub(w.start) >= 2*rl.cfg.Window {
			delete(rl.windows, key)
		}
	}
}

// RateLimit enforces a per-key request limit. Exceeding it yields 429 with a
// JSON body; every response carries X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimitMiddleware(newRateLimiter(cfg))
}

// RateLimitWithCleanup is RateLimit plus a background goroutine evicting
// stale keys until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * rl.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.cleanup(now)
			}
		}
	}()
	return rateLimitMiddleware(rl)
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &rateLimiter{cfg: cfg, windows: make(map[string]*window)}
}

func rateLimitMiddleware(rl *rateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, allowed := rl.allow(rl.cfg.KeyFunc(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(resetAt).Seconds()) + 1
				if retryAfter < 0 {
					retryAfter = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
