// Package security provides request hygiene middleware: a filter for
// scanner and traversal traffic, and a request body size cap.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// probePrefixes match paths that only vulnerability scanners request.
var probePrefixes = []string{
	"/.php",
	"/.git/",
	"/.env",
	"/.htaccess",
	"/.htpasswd",
	"/wp-admin",
	"/wp-includes",
	"/wp-content",
	"/wp-login",
	"/web-inf/",
	"/cgi-bin/",
	"/admin/",
	"/phpmyadmin",
	"/phpinfo",
	"/shell",
	"/config.",
	"/server-status",
	"/xmlrpc.php",
}

// traversalMarkers match path traversal and injection attempts, in
// plain and URL-encoded forms.
var traversalMarkers = []string{
	"../",
	"..%2f",
	"..%5c",
	"%2e%2e/",
	"%00",
}

// exemptPaths skip filtering so probes never break liveness checks.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/healthz": {},
	"/readyz":  {},
}

// Filter rejects requests whose path matches known scanner probes or
// traversal attempts. With enabled false it is a no-op.
func Filter(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if suspicious(r.URL) {
				reject(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func suspicious(u *url.URL) bool {
	path := strings.ToLower(u.Path)

	for _, prefix := range probePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, marker := range traversalMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}

	// Re-check the escaped form after one more decode round so
	// double-encoded traversal does not slip through.
	raw := u.RawPath
	if raw == "" {
		raw = u.Path
	}
	if decoded, err := url.PathUnescape(raw); err == nil && decoded != path {
		decoded = strings.ToLower(decoded)
		for _, marker := range traversalMarkers {
			if strings.Contains(decoded, marker) {
				return true
			}
		}
	}
	return false
}

// reject answers with a generic 400 that does not reveal which rule
// matched.
func reject(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "BAD_REQUEST",
			"message": "Invalid request",
		},
	})
}
