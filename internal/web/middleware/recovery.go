package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/web/response"
)

// Recovery turns a panicking handler into a 500 response and logs the panic
// with its stack.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				logger.Error("panic recovered",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Error(err),
					zap.StackSkip("stack", 1),
				)

				response.RenderInternalError(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
