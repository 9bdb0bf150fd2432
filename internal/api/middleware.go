package api

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// ReportBodyLimitBytes fits a save or weekly request: MaxContentLength
	// runes of up to 4 bytes plus the JSON envelope.
	ReportBodyLimitBytes int64 = 4*MaxContentLength + 1024

	// ImportBodyLimitBytes fits the largest accepted import document.
	ImportBodyLimitBytes int64 = MaxImportPayloadBytes

	// DefaultRateLimitRequests is the request budget per client and window.
	DefaultRateLimitRequests = 120

	// WeeklyRateLimitRequests budgets summary generation per client and window.
	// Each call holds a chat completion open for up to the request timeout.
	WeeklyRateLimitRequests = 6

	DefaultRateLimitWindow = time.Minute
)

// Reports are private notes: never cache them and never let them be framed.
var responseHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Cache-Control":           "no-store",
	"Referrer-Policy":         "no-referrer",
}

type clientWindow struct {
	start time.Time
	count int
}

// fixedWindowLimiter counts requests per client in fixed windows.
type fixedWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]clientWindow
}

func newFixedWindowLimiter(limit int, window time.Duration, now func() time.Time) *fixedWindowLimiter {
	if limit <= 0 {
		limit = DefaultRateLimitRequests
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if now == nil {
		now = time.Now
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		clients: make(map[string]clientWindow),
	}
}

func (l *fixedWindowLimiter) allow(client string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	cw, ok := l.clients[client]
	if ok && now.Sub(cw.start) < l.window {
		if cw.count >= l.limit {
			return false
		}
		cw.count++
		l.clients[client] = cw
		return true
	}

	// Forget clients whose window has expired
	for c, w := range l.clients {
		if now.Sub(w.start) >= l.window {
			delete(l.clients, c)
		}
	}
	l.clients[client] = clientWindow{start: now, count: 1}
	return true
}

// RequestLogger attaches a request-scoped logger to the context and logs
// each completed request with its status and latency.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_ip", clientIPFromRequest(r)).
				Logger()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(reqLogger.WithContext(r.Context())))

			reqLogger.Info().
				Int("status", rec.status).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// SecurityHeaders sets the response headers every API answer carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range responseHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// BodySizeLimit caps the request body. Handlers see *http.MaxBytesError
// once a read crosses the limit.
func BodySizeLimit(limitBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitPerIP allows limit requests per client IP in each window and
// answers 429 with Retry-After beyond that. Put chi's middleware.RealIP in
// front when serving behind a proxy.
func RateLimitPerIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return rateLimitPerIPWithClock(limit, window, time.Now)
}

func rateLimitPerIPWithClock(limit int, window time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	limiter := newFixedWindowLimiter(limit, window, now)
	retryAfter := strconv.Itoa(max(1, int(limiter.window.Seconds())))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.allow(clientIPFromRequest(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":"rate limit exceeded"}`+"\n")
		})
	}
}

// clientIPFromRequest strips the port from RemoteAddr.
func clientIPFromRequest(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
