package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/kasemt/hrcore/pkg/http"
	"github.com/stretchr/testify/assert"
)

// Forwarding headers are attacker-controlled unless the request arrives
// from a configured proxy, so every case here pins which source wins.
func TestExtractClientIP(t *testing.T) {
	internalProxies := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1/32"}}

	t.Run("direct connection ignores forwarding headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.10:54321"
		req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
		req.Header.Set("X-Real-IP", "192.168.1.1")

		assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, internalProxies))
	})

	t.Run("trusted proxy uses first X-Forwarded-For entry", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.5:54321"
		req.Header.Set("X-Forwarded-For", "203.0.113.42, 203.0.113.43, 10.0.0.5")

		assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req, internalProxies))
	})

	t.Run("trusted proxy falls back to X-Real-IP", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.5:54321"
		req.Header.Set("X-Real-IP", "203.0.113.42")

		assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req, internalProxies))
	})

	t.Run("nil config trusts nothing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.10:54321"
		req.Header.Set("X-Forwarded-For", "1.2.3.4")

		assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, nil))
	})

	t.Run("invalid CIDR entries are skipped", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.10:54321"
		req.Header.Set("X-Forwarded-For", "1.2.3.4")

		config := &pkghttp.IPConfig{TrustedProxies: []string{"not-a-cidr"}}
		assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, config))
	})

	t.Run("garbage X-Forwarded-For entries are skipped", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.5:54321"
		req.Header.Set("X-Forwarded-For", "unknown, 203.0.113.42")

		assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req, internalProxies))
	})

	t.Run("IPv6 proxy and client", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "[::1]:54321"
		req.Header.Set("X-Forwarded-For", "2001:db8::1")

		config := &pkghttp.IPConfig{TrustedProxies: []string{"::1/128"}}
		assert.Equal(t, "2001:db8::1", pkghttp.ExtractClientIP(req, config))
	})

	t.Run("spoofed localhost does not bypass the proxy check", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.10:54321"
		req.Header.Set("X-Forwarded-For", "127.0.0.1, 203.0.113.10")

		assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, internalProxies))
	})
}
