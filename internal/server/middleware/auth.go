package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ferrostack/ferro/internal/descriptor"
)

// RequireToken returns an HTTP middleware that validates a Bearer JWT signed
// with the shared trigger secret. It guards the mutating sync-trigger
// endpoint; read-only metadata stays open. An empty secret disables the
// check, which is the development default.
func RequireToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "Missing bearer token")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if err := ValidateTriggerToken(secret, token); err != nil {
				writeAuthError(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SignTriggerToken mints a short-lived HS256 token accepted by RequireToken.
// The CLI exposes it as `ferro token` for CI pipelines that call the trigger
// endpoint.
func SignTriggerToken(secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "ferro",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign trigger token: %w", err)
	}
	return signed, nil
}

// ValidateTriggerToken verifies the signature, issuer, and expiry of a
// trigger token.
func ValidateTriggerToken(secret, tokenStr string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer("ferro"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(descriptor.ErrorResponse{
		Error: descriptor.ErrorDetail{
			Code:    http.StatusUnauthorized,
			Message: message,
		},
	})
}
