package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig names the proxy CIDR ranges whose forwarding headers are
// believed. Anything outside these ranges is treated as a direct
// client and its headers are ignored.
type IPConfig struct {
	TrustedProxies []string
}

// ExtractClientIP resolves the client address for rate limiting and
// attempt records. X-Forwarded-For and X-Real-IP are attacker-supplied
// unless the TCP peer is a trusted proxy, so they are consulted only
// then; otherwise the peer address wins.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := peerAddr(r)

	if config == nil || !fromTrustedProxy(peer, config.TrustedProxies) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, hop := range strings.Split(xff, ",") {
			hop = strings.TrimSpace(hop)
			if _, err := netip.ParseAddr(hop); err == nil {
				return hop
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}

	return peer
}

func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func fromTrustedProxy(peer string, trusted []string) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}

	// Entries may be CIDR ranges or bare addresses.
	for _, entry := range trusted {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			if prefix.Contains(addr) {
				return true
			}
			continue
		}
		if single, err := netip.ParseAddr(entry); err == nil && single == addr {
			return true
		}
	}
	return false
}
