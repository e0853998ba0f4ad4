package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	s := NewTokenService("test-secret", time.Hour)

	token, err := s.Issue("reader@example.com", "docs:read")
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.True(t, claims.HasScope("docs:read"))
	assert.False(t, claims.HasScope("docs:write"))
	require.NotNil(t, claims.ExpiresAt)
}

func TestTokenService_NoExpiry(t *testing.T) {
	s := NewTokenService("test-secret", 0)

	token, err := s.Issue("ci")
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestTokenService_IssueRequiresSubject(t *testing.T) {
	_, err := NewTokenService("s", time.Hour).Issue("")
	assert.Error(t, err)
}

func TestTokenService_Rejects(t *testing.T) {
	s := NewTokenService("test-secret", time.Hour)
	good, err := s.Issue("reader")
	require.NoError(t, err)

	expired := NewTokenService("test-secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue("reader")
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "someone-else",
		Subject: "reader",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:  Issuer,
		Subject: "reader",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct {
		svc   *TokenService
		token string
	}{
		"wrong secret":   {svc: NewTokenService("other", time.Hour), token: good},
		"expired":        {svc: s, token: old},
		"wrong issuer":   {svc: s, token: foreign},
		"none algorithm": {svc: s, token: none},
		"garbage":        {svc: s, token: "not.a.token"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.svc.Validate(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFrom(context.Background())
	assert.False(t, ok)

	c := &Claims{Scopes: []string{"docs:read"}}
	got, ok := ClaimsFrom(WithClaims(context.Background(), c))
	assert.True(t, ok)
	assert.Same(t, c, got)
}
