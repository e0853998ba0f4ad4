package middleware

import (
	"bytes"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/projection"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/web/query"
)

// ProjectionConfig configures the Projection middleware.
type ProjectionConfig struct {
	Projector *projection.Projector
	Naming    resolve.Naming
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// Projection shrinks successful JSON responses to the fields named by the
// selector query parameter. Bodies that cannot be decoded are sent
// unchanged. A body unwrapped by the projector is wrapped again under the
// same key.
func Projection(config ProjectionConfig) Middleware {
	projector := config.Projector
	if projector == nil {
		projector = projection.New(projection.Config{})
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sel := query.ParseSelector(r, config.Naming)
			if sel.IsAll() {
				config.Metrics.RecordProjection(metrics.OutcomeSkipped, 0)
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferedWriter{header: make(http.Header), statusCode: http.StatusOK}
			next.ServeHTTP(buf, r)

			start := time.Now()
			body, ok := project(projector, buf, sel)
			if !ok {
				config.Metrics.RecordProjection(metrics.OutcomePassthrough, time.Since(start))
				logger.Debug("projection skipped",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Int("status", buf.statusCode),
				)
				body = buf.body.Bytes()
			} else {
				config.Metrics.RecordProjection(metrics.OutcomeFiltered, time.Since(start))
			}
			if err := buf.flush(w, body); err != nil {
				logger.Debug("failed to write projected response",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
			}
		})
	}
}

func project(projector *projection.Projector, buf *bufferedWriter, sel projection.Selection) ([]byte, bool) {
	if buf.statusCode < 200 || buf.statusCode >= 300 || !isJSON(buf.header.Get("Content-Type")) {
		return nil, false
	}

	decoded, err := ordered.DecodeJSON(buf.body.Bytes())
	if err != nil {
		return nil, false
	}

	result := projector.Apply(decoded, sel)
	out := result.Body
	if result.Unwrapped != "" {
		wrapped := ordered.New[any](1)
		wrapped.Set(result.Unwrapped, out)
		out = wrapped
	}

	encoded, err := ordered.Encode(out)
	if err != nil {
		return nil, false
	}
	return encoded, true
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || mediaType == "application/vnd.api+json"
}

// bufferedWriter holds a response until the projection has run.
type bufferedWriter struct {
	header      http.Header
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(statusCode int) {
	if !b.wroteHeader {
		b.statusCode = statusCode
		b.wroteHeader = true
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

func (b *bufferedWriter) flush(w http.ResponseWriter, body []byte) error {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	dst.Del("Content-Length")
	w.WriteHeader(b.statusCode)
	_, err := w.Write(body)
	return err
}
