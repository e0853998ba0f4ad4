package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/ratelimit"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (*ratelimit.Info, error) {
	return nil, errors.New("redis down")
}

func (failingLimiter) Close() error { return nil }

func TestRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewTokenBucket(ratelimit.Config{Limit: 2, Window: time.Minute})
	require.NoError(t, err)
	defer limiter.Close()

	collector := metrics.NewCollector("", nil)
	handler := RateLimit(RateLimitConfig{Limiter: limiter, Metrics: collector})(okHandler("ok"))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/docs", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send("10.0.0.1:4000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	rec = send("10.0.0.1:4001")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = send("10.0.0.1:4002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too_many_requests")
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 60, retry, 1)

	rec = send("10.0.0.2:4000")
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their allowance")

	metricsRec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), "fielddoc_rate_limited_total 1")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	handler := RateLimit(RateLimitConfig{Limiter: failingLimiter{}, Logger: zap.New(core)})(okHandler("ok"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, 1, logs.FilterMessage("rate limiter unavailable").Len())
}

func TestRateLimit_NilLimiter(t *testing.T) {
	assert.Nil(t, RateLimit(RateLimitConfig{}))
	assert.Equal(t, 0, NewChain().Use(RateLimit(RateLimitConfig{})).Len())
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1", ClientKey(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "ip:pipe", ClientKey(req))

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ada"}}
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	assert.Equal(t, "sub:ada", ClientKey(req))
}
