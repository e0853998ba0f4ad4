package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/response"
)

// AuthConfig holds configuration for authentication middleware
type AuthConfig struct {
	Tokens *auth.TokenService
	// Scope, when set, must be granted by the token.
	Scope string
	// SkipPaths is a list of paths to skip authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// Auth requires a valid bearer token on every request outside SkipPaths and
// stores its claims in the request context.
func Auth(config AuthConfig) Middleware {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.RenderUnauthorized(w, "Authorization required")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				response.RenderUnauthorized(w, "Invalid authorization format")
				return
			}

			claims, err := config.Tokens.Validate(token)
			if err != nil {
				logger.Debug("token rejected",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
				response.RenderUnauthorized(w, "Invalid token")
				return
			}

			if config.Scope != "" && !claims.HasScope(config.Scope) {
				response.RenderError(w, http.StatusForbidden, response.NewHTTPError(http.StatusForbidden, "Token lacks scope "+config.Scope))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
