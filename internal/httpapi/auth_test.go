package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	subject, _ := r.Context().Value(SubjectKey).(string)
	w.Header().Set("X-Subject", subject)
	w.WriteHeader(http.StatusOK)
}

func TestAuthenticatorRejectsMissingToken(t *testing.T) {
	a := NewAuthenticator("sekrit", zaptest.NewLogger(t))
	h := a.Wrap(okHandler)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorAcceptsValidToken(t *testing.T) {
	a := NewAuthenticator("sekrit", zaptest.NewLogger(t))
	h := a.Wrap(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "sekrit", "user-1"))
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Header().Get("X-Subject"))
}

func TestAuthenticatorRejectsWrongSecret(t *testing.T) {
	a := NewAuthenticator("sekrit", zaptest.NewLogger(t))
	h := a.Wrap(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-1"))
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorQueryParamFallback(t *testing.T) {
	a := NewAuthenticator("sekrit", zaptest.NewLogger(t))
	h := a.Wrap(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/?access_token="+signToken(t, "sekrit", "sse-client"), nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sse-client", rec.Header().Get("X-Subject"))
}

func TestNilAuthenticatorPassesThrough(t *testing.T) {
	var a *Authenticator
	h := a.Wrap(okHandler)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAuthenticatorEmptySecretDisables(t *testing.T) {
	assert.Nil(t, NewAuthenticator("", zaptest.NewLogger(t)))
}
