// Package auth provides bearer-token authentication for operational
// endpoints.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// TokenLength is the length of the random part of a generated token.
const TokenLength = 32

// GenerateToken generates a new random bearer token.
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// RequireToken returns middleware that gates requests on a static
// bearer token. An empty configured token rejects every request, so an
// unconfigured sweep endpoint is closed rather than open.
func RequireToken(token string, writeError func(w http.ResponseWriter, status int, code, message string)) func(http.Handler) http.Handler {
	// Compare digests so length differences leak nothing.
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Endpoint not configured")
				return
			}

			presented := bearerToken(r)
			if presented == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token required")
				return
			}

			got := sha256.Sum256([]byte(presented))
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}
