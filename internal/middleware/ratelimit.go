package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP returns the client address, preferring proxy headers.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	count int
	reset time.Time
}

// WriteLimiter counts fixed-window requests per key.
type WriteLimiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[string]*window
	now     func() time.Time
}

func NewWriteLimiter(limit int, period time.Duration) *WriteLimiter {
	return &WriteLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// limit, and if not, how long until the window resets.
func (l *WriteLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		l.windows[key] = &window{count: 1, reset: now.Add(l.period)}
		return true, 0
	}
	w.count++
	if w.count > l.limit {
		return false, w.reset.Sub(now)
	}
	return true, 0
}

// Cleanup drops expired windows.
func (l *WriteLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, key)
		}
	}
}

// LimitWrites rejects mutating requests from a client that exceeds the
// limiter's budget. Reads and the websocket upgrade pass through.
func LimitWrites(l *WriteLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := l.Allow(RealIP(r))
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too many requests"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
