package router

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strings"

	"github.com/shandysiswandi/ayurclinic/internal/pkg/config"
)

// middlewareIP replaces RemoteAddr with the bare client IP. Proxy headers are
// honored only when the direct peer falls inside app.trusted_proxies (CIDRs or
// single addresses); otherwise a caller could pick its own rate limit key.
func middlewareIP(cfg config.Config) Middleware {
	trusted := trustedProxies(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := realIP(r, trusted); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

func trustedProxies(cfg config.Config) []netip.Prefix {
	if cfg == nil {
		return nil
	}

	var out []netip.Prefix
	for _, raw := range cfg.GetArray("app.trusted_proxies") {
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(raw); err == nil {
			out = append(out, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		slog.Warn("ignoring invalid trusted proxy", "value", raw)
	}
	return out
}

func realIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}

	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()

	if !slices.ContainsFunc(trusted, func(p netip.Prefix) bool { return p.Contains(addr) }) {
		return addr.String()
	}

	for _, h := range []string{"True-Client-IP", "X-Real-IP", "X-Forwarded-For"} {
		v, _, _ := strings.Cut(r.Header.Get(h), ",")
		if fwd, err := netip.ParseAddr(strings.TrimSpace(v)); err == nil {
			return fwd.Unmap().String()
		}
	}
	return addr.String()
}
