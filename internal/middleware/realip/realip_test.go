package realip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resolveThrough(t *testing.T, cfg Config, remoteAddr string, headers map[string]string) string {
	t.Helper()

	var got string
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestResolveClientIP(t *testing.T) {
	trusting := Config{
		TrustProxy:     true,
		TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12"},
	}

	tests := []struct {
		name       string
		cfg        Config
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "proxy trust disabled ignores forwarded header",
			cfg:        Config{TrustProxy: false, TrustedProxies: []string{"10.0.0.0/8"}},
			remoteAddr: "192.168.1.100:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			want:       "192.168.1.100",
		},
		{
			name:       "trusted peer yields forwarded client",
			cfg:        trusting,
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.5"},
			want:       "203.0.113.50",
		},
		{
			name:       "untrusted peer cannot spoof",
			cfg:        trusting,
			remoteAddr: "203.0.113.9:12345",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip fallback when no forwarded header",
			cfg:        trusting,
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Real-IP": "203.0.113.50"},
			want:       "203.0.113.50",
		},
		{
			name:       "multi-hop chain finds first untrusted hop",
			cfg:        trusting,
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 172.16.0.1, 10.0.0.2"},
			want:       "203.0.113.50",
		},
		{
			name:       "fully trusted chain falls back to leftmost",
			cfg:        trusting,
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "172.16.5.5, 10.0.0.2"},
			want:       "172.16.5.5",
		},
		{
			name:       "no headers at all",
			cfg:        trusting,
			remoteAddr: "10.0.0.1:12345",
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveThrough(t, tt.cfg, tt.remoteAddr, tt.headers))
		})
	}
}

func TestGetClientIPWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	assert.Equal(t, "192.168.1.100", GetClientIP(req))
}

func TestStripPort(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.100:12345", "192.168.1.100"},
		{"192.168.1.100", "192.168.1.100"},
		{"[::1]:8080", "::1"},
		{"::1", "::1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripPort(tt.addr), tt.addr)
	}
}

func TestTrustList(t *testing.T) {
	trusted := parsePrefixes([]string{"10.0.0.0/8", "172.16.0.0/12", "192.168.1.7", "not-an-ip"})
	assert.Len(t, trusted, 3)

	assert.True(t, trusted.contains("10.255.255.255"))
	assert.True(t, trusted.contains("172.31.0.1"))
	assert.True(t, trusted.contains("192.168.1.7"))
	assert.False(t, trusted.contains("172.32.0.1"))
	assert.False(t, trusted.contains("8.8.8.8"))
	assert.False(t, trusted.contains("garbage"))
}
