package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingKey = "test-signing-key"

func adminToken(t *testing.T, key, scope string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   "ops",
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func protectedHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RequireAdmin(signingKey, logger)(ok)
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/revoke", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, signingKey, AdminScope))
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin_MissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/revoke", nil)
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_WrongKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/revoke", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "other-key", AdminScope))
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_MissingScope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/revoke", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, signingKey, "ledger:read"))
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_ExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":   "ops",
		"scope": AdminScope,
		"exp":   time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/revoke", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_HonorsClientHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "client-supplied", seen)
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
