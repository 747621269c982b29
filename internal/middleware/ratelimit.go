package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// windowLimiter counts requests per client in fixed windows. Pipeline runs
// fan out to several paid model calls, so the limit is per IP, not global.
type windowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]*window
	swept   time.Time
}

type window struct {
	count int
	ends  time.Time
}

func newWindowLimiter(limit int, per time.Duration, now func() time.Time) *windowLimiter {
	return &windowLimiter{limit: limit, window: per, now: now, clients: make(map[string]*window)}
}

// allow records one request for key. When the window is full it returns the
// time left until it resets.
func (l *windowLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.swept) > l.window {
		for k, w := range l.clients {
			if now.After(w.ends) {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}
	w, ok := l.clients[key]
	if !ok || now.After(w.ends) {
		w = &window{ends: now.Add(l.window)}
		l.clients[key] = w
	}
	if w.count >= l.limit {
		return false, w.ends.Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit allows limit requests per client IP in each window of length per.
// Rejections carry Retry-After and a JSON body shaped like handler errors.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := newWindowLimiter(limit, per, time.Now)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.allow(clientIPForRateLimit(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded","code":"rate_limited","requestId":"` + RequestIDFromContext(r.Context()) + `"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
