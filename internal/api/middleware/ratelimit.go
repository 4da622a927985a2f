package middleware

import (
	"net/http"
	"sync"
	"time"

	"Ensign/internal/api/handlers"
)

// Limiter is a fixed-window in-memory rate limiter keyed by client IP.
// Registry lookups are expensive, so the public endpoints sit behind this.
// For multi-instance deployments use a shared limiter instead.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// NewLimiter allows limit requests per period per client.
func NewLimiter(limit int, period time.Duration) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
	go l.prune()
	return l
}

// Middleware rejects clients over their limit with a 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			handlers.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	win, ok := l.windows[client]
	if !ok || now.After(win.resetAt) {
		l.windows[client] = &window{count: 1, resetAt: now.Add(l.period)}
		return true
	}

	if win.count >= l.limit {
		return false
	}
	win.count++
	return true
}

// prune drops expired windows so the map does not grow without bound.
func (l *Limiter) prune() {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for client, win := range l.windows {
			if now.After(win.resetAt) {
				delete(l.windows, client)
			}
		}
		l.mu.Unlock()
	}
}

// clientIP prefers proxy headers and falls back to the socket address.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
