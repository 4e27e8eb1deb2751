package server

import (
	"net/http"
	"strings"
)

// cspPolicy is an ordered list of Content-Security-Policy directives.
type cspPolicy []cspDirective

type cspDirective struct {
	name    string
	sources []string
}

// previewCSP is the policy for the embedded preview page. The page
// carries its script and style inline, and the live-update socket needs
// the ws: schemes in connect-src.
func previewCSP() cspPolicy {
	return cspPolicy{
		{"default-src", []string{"'self'"}},
		{"script-src", []string{"'self'", "'unsafe-inline'"}},
		{"style-src", []string{"'self'", "'unsafe-inline'"}},
		{"connect-src", []string{"'self'", "ws:", "wss:"}},
		{"img-src", []string{"'self'", "data:"}},
		{"frame-ancestors", []string{"'none'"}},
		{"base-uri", []string{"'self'"}},
		{"form-action", []string{"'self'"}},
	}
}

// Header renders the policy as a Content-Security-Policy header value.
func (p cspPolicy) Header() string {
	parts := make([]string, 0, len(p))
	for _, d := range p {
		if len(d.sources) == 0 {
			continue
		}
		parts = append(parts, d.name+" "+strings.Join(d.sources, " "))
	}
	return strings.Join(parts, "; ")
}

// securityHeaders wraps next with the standard hardening headers and the
// given Content-Security-Policy.
func securityHeaders(policy cspPolicy, next http.Handler) http.Handler {
	csp := policy.Header()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if csp != "" {
			h.Set("Content-Security-Policy", csp)
		}
		next.ServeHTTP(w, r)
	})
}
