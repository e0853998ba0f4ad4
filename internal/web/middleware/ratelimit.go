package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/ratelimit"
	"github.com/fielddoc/fielddoc/internal/web/response"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	// Key identifies the client; ClientKey when nil.
	Key     func(*http.Request) string
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// RateLimit rejects clients that exceed their allowance with 429 and reports
// the allowance in X-RateLimit-* headers. Limiter failures let the request
// through.
func RateLimit(config RateLimitConfig) Middleware {
	if config.Limiter == nil {
		return nil
	}
	key := config.Key
	if key == nil {
		key = ClientKey
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := key(r)
			info, err := config.Limiter.Allow(r.Context(), client)
			if err != nil {
				logger.Warn("rate limiter unavailable",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				retry := info.RetryAfter(time.Now())
				h.Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second)/time.Second)))
				config.Metrics.RecordRateLimited()
				logger.Debug("rate limited",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("client", client),
				)
				response.RenderTooManyRequests(w, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies authenticated clients by token subject and others
// by remote address.
func ClientKey(r *http.Request) string {
	if claims, ok := auth.ClaimsFrom(r.Context()); ok && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
