package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP replaces r.RemoteAddr with the client address from
// X-Real-IP or the first X-Forwarded-For entry, but only when the connection
// comes from one of trustedCIDRs. Entries may be CIDRs or single addresses;
// invalid entries are logged and skipped.
//
// Headers from untrusted peers are ignored so clients cannot dodge the rate
// limiter by claiming another address.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	trusted := parseTrusted(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 && isTrusted(remoteAddr(r.RemoteAddr), trusted) {
				if ip, ok := forwardedFor(r.Header); ok {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseTrusted(cidrs []string) []netip.Prefix {
	var out []netip.Prefix
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if p, err := netip.ParsePrefix(c); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(c)
		if err != nil {
			slog.Warn("realip: invalid trusted proxy, skipping", "cidr", c, "error", err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

// forwardedFor returns the client address claimed by the proxy headers.
func forwardedFor(h http.Header) (netip.Addr, bool) {
	if rip := strings.TrimSpace(h.Get("X-Real-IP")); rip != "" {
		addr, err := netip.ParseAddr(rip)
		return addr.Unmap(), err == nil
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		addr, err := netip.ParseAddr(strings.TrimSpace(first))
		return addr.Unmap(), err == nil
	}
	return netip.Addr{}, false
}

// remoteAddr parses host:port or a bare address; the zero Addr means
// unparseable.
func remoteAddr(s string) netip.Addr {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	if !ip.IsValid() {
		return false
	}
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
