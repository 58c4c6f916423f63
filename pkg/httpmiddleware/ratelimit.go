package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Quota is a limiter's verdict for a single request.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Take(ctx context.Context, key string, now time.Time) (Quota, error)
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	// Limiter is consulted for every request. Defaults to an in-memory
	// sliding window of Max requests per Window.
	Limiter Limiter
	Max     int
	Window  time.Duration
	// KeyFunc extracts the rate limit key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// RateLimit rejects callers over their quota with 429 and reports the quota in
// X-RateLimit-* headers. Limiter failures let the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		cfg.Limiter = NewWindowLimiter(cfg.Max, cfg.Window)
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			q, err := cfg.Limiter.Take(r.Context(), cfg.KeyFunc(r), now)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(q.ResetAt.Unix(), 10))
			if !q.Allowed {
				wait := max(q.ResetAt.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WindowLimiter is an in-memory sliding window limiter. The previous window's
// count is weighted by how much of it the sliding window still covers.
type WindowLimiter struct {
	limit int
	size  time.Duration

	mu      sync.Mutex
	buckets map[string]*window
}

type window struct {
	start time.Time
	curr  float64
	prev  float64
}

var _ Limiter = (*WindowLimiter)(nil)

// NewWindowLimiter allows up to limit requests per key in any window of size.
func NewWindowLimiter(limit int, size time.Duration) *WindowLimiter {
	return &WindowLimiter{
		limit:   limit,
		size:    size,
		buckets: make(map[string]*window),
	}
}

// Take implements Limiter.
func (l *WindowLimiter) Take(_ context.Context, key string, now time.Time) (Quota, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &window{start: now.Truncate(l.size)}
		l.buckets[key] = b
	}
	switch since := now.Sub(b.start); {
	case since >= 2*l.size:
		b.prev, b.curr = 0, 0
		b.start = now.Truncate(l.size)
	case since >= l.size:
		b.prev, b.curr = b.curr, 0
		b.start = b.start.Add(l.size)
	}

	overlap := 1 - float64(now.Sub(b.start))/float64(l.size)
	used := b.prev*max(overlap, 0) + b.curr

	q := Quota{Limit: l.limit, ResetAt: b.start.Add(l.size)}
	if used >= float64(l.limit) {
		return q, nil
	}
	b.curr++
	q.Allowed = true
	q.Remaining = max(int(float64(l.limit)-used-1), 0)
	return q, nil
}

// Prune drops keys idle for two full windows.
func (l *WindowLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.size {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Run prunes idle keys every two windows until ctx is done.
func (l *WindowLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.size)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Prune(now)
		}
	}
}

// ClientIP keys requests by the first X-Forwarded-For hop, X-Real-IP, or the
// remote address, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
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
