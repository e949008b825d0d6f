package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Middleware records request counts and latencies. Paths are collapsed
// so that addresses, hashes, and numeric IDs do not explode label
// cardinality.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := normalizePath(r.URL.Path)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

// normalizePath replaces identifier-looking segments under /api/v1
// with {id}: /api/v1/deployments/0xabc... -> /api/v1/deployments/{id}.
func normalizePath(path string) string {
	const prefix = "/api/v1/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}

	segments := strings.Split(strings.Trim(path[len(prefix):], "/"), "/")
	for i, seg := range segments {
		if i > 0 && looksLikeID(seg) {
			segments[i] = "{id}"
		}
	}
	return prefix + strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	switch {
	case strings.HasPrefix(seg, "0x") && isHex(seg[2:]):
		return true
	case len(seg) >= 40 && isHex(seg):
		return true
	case strings.Count(seg, "-") >= 4:
		// UUID shape.
		return true
	}
	return isDecimal(seg)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
