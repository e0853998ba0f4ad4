package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/middleware"
	"github.com/fielddoc/fielddoc/internal/web/response"
)

type tokenBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// handleToken exchanges HTTP Basic client credentials for a bearer token
// carrying scope.
func handleToken(tokens *auth.TokenService, clients auth.Clients, scope string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok {
			challenge(w, "Client credentials required")
			return
		}
		if err := clients.Authenticate(id, secret); err != nil {
			logger.Info("token request rejected",
				zap.String("client", id),
				zap.String("request_id", middleware.GetRequestID(r.Context())),
			)
			challenge(w, "Invalid client credentials")
			return
		}

		var scopes []string
		if scope != "" {
			scopes = []string{scope}
		}
		token, err := tokens.Issue(id, scopes...)
		if err != nil {
			logger.Error("failed to issue token", zap.String("client", id), zap.Error(err))
			response.RenderInternalError(w)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		response.RenderJSON(w, http.StatusOK, tokenBody{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int64(tokens.TTL().Seconds()),
			Scope:       scope,
		})
	}
}

func challenge(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="fielddoc"`)
	response.RenderError(w, http.StatusUnauthorized, errors.New(message))
}
