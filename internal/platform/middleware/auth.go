package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AdminScope is the scope claim required on tokens hitting admin routes.
const AdminScope = "ledger:admin"

// RequireAdmin guards admin routes (revocation, reporting) with an HMAC
// bearer token carrying the admin scope.
func RequireAdmin(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(signingKey), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			var claims jwt.MapClaims
			token, err := jwt.ParseWithClaims(raw, &claims, keyFunc)
			if err != nil || !token.Valid {
				logger.Warn("admin token rejected", "error", err, "request_id", GetRequestID(r.Context()))
				unauthorized(w, "invalid token")
				return
			}

			scope, _ := claims["scope"].(string)
			if !hasScope(scope, AdminScope) {
				unauthorized(w, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func hasScope(scopes, want string) bool {
	for _, s := range strings.Fields(scopes) {
		if s == want {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + msg + `"}`))
}
