// Package realip resolves the originating client IP for each request.
// Forwarding headers are honored only when the direct peer is a
// trusted proxy; otherwise the connection's remote address wins.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type ctxKey struct{}

// Config controls forwarded-header handling.
type Config struct {
	// TrustProxy enables X-Forwarded-For and X-Real-IP parsing.
	TrustProxy bool
	// TrustedProxies lists CIDR ranges, or bare addresses, allowed to
	// set forwarding headers.
	TrustedProxies []string
}

// Middleware resolves the client IP once per request and stores it in
// the request context for the rate limiter and request logger.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	var trusted trustList
	if cfg.TrustProxy {
		trusted = parsePrefixes(cfg.TrustedProxies)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolve(r, cfg.TrustProxy, trusted)
			ctx := context.WithValue(r.Context(), ctxKey{}, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP returns the resolved client IP. Without the middleware
// installed it falls back to the connection's remote address.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ctxKey{}).(string); ok && ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}

func resolve(r *http.Request, trustProxy bool, trusted trustList) string {
	peer := stripPort(r.RemoteAddr)
	if !trustProxy || !trusted.contains(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		// Right to left: the first hop that is not one of our proxies
		// is the client.
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !trusted.contains(hop) {
				return hop
			}
		}
		// Every hop is trusted; the leftmost entry is the closest
		// thing to a client address the chain recorded.
		return strings.TrimSpace(hops[0])
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

type trustList []netip.Prefix

// parsePrefixes accepts CIDR ranges and bare addresses; bare addresses
// become single-host prefixes. Unparseable entries are dropped.
func parsePrefixes(entries []string) trustList {
	var out trustList
	for _, entry := range entries {
		if p, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, p)
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return out
}

func (t trustList) contains(ipStr string) bool {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
