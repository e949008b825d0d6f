package security

import "net/http"

// MaxBodySize caps request bodies at maxMB megabytes. Handlers that
// read past the cap get an *http.MaxBytesError from the body reader.
func MaxBodySize(maxMB int) func(http.Handler) http.Handler {
	limit := int64(maxMB) << 20
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
