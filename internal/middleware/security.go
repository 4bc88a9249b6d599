package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// SecureHeaders sets the browser security headers on every response.
// The zero value sets nothing; use DefaultSecureHeaders for a sensible
// baseline.
type SecureHeaders struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	// ContentSecurityPolicy overrides the built-in policy when set.
	ContentSecurityPolicy string

	XFrameOptions       string
	XContentTypeOptions string
	XSSProtection       string
	ReferrerPolicy      string
	PermissionsPolicy   string

	// DevMode relaxes the CSP and drops the permissions policy so
	// local tooling keeps working.
	DevMode bool
}

// DefaultSecureHeaders returns the production baseline.
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		HSTSMaxAge:            2 * 365 * 24 * 60 * 60,
		HSTSIncludeSubdomains: true,
		HSTSPreload:           true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		XSSProtection:       "1; mode=block",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
	}
}

// Handler returns the middleware handler.
func (s *SecureHeaders) Handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades carry no document, headers would only
		// confuse proxies
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		if s.HSTSMaxAge > 0 && (r.TLS != nil || s.DevMode) {
			directives := []string{"max-age=" + strconv.Itoa(s.HSTSMaxAge)}
			if s.HSTSIncludeSubdomains {
				directives = append(directives, "includeSubDomains")
			}
			if s.HSTSPreload {
				directives = append(directives, "preload")
			}
			w.Header().Set("Strict-Transport-Security", strings.Join(directives, "; "))
		}

		csp := s.ContentSecurityPolicy
		if csp == "" {
			csp = s.defaultCSP()
		}
		w.Header().Set("Content-Security-Policy", csp)

		setIfConfigured := func(name, value string) {
			if value != "" {
				w.Header().Set(name, value)
			}
		}
		setIfConfigured("X-Frame-Options", s.XFrameOptions)
		setIfConfigured("X-Content-Type-Options", s.XContentTypeOptions)
		setIfConfigured("X-XSS-Protection", s.XSSProtection)
		setIfConfigured("Referrer-Policy", s.ReferrerPolicy)

		switch {
		case s.PermissionsPolicy != "":
			w.Header().Set("Permissions-Policy", s.PermissionsPolicy)
		case !s.DevMode:
			w.Header().Set("Permissions-Policy", s.defaultPermissionsPolicy())
		}

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// defaultCSP builds the Content Security Policy. The embedded frontend
// is self-contained: inline scripts render the charts to a canvas and
// export them as data URLs, and live updates arrive over WebSocket, so
// 'unsafe-inline' and ws:/wss: stay allowed even in production.
func (s *SecureHeaders) defaultCSP() string {
	if s.DevMode {
		return strings.Join([]string{
			"default-src 'self'",
			"script-src * 'unsafe-inline' 'unsafe-eval'",
			"style-src * 'unsafe-inline'",
			"img-src * data: blob:",
			"font-src *",
			"connect-src *",
		}, "; ")
	}

	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: blob:",
		"font-src 'self' data:",
		"connect-src 'self' wss: ws:",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")
}

// defaultPermissionsPolicy denies every browser capability the app has
// no use for, the FLoC cohort included.
func (s *SecureHeaders) defaultPermissionsPolicy() string {
	return strings.Join([]string{
		"accelerometer=()",
		"camera=()",
		"geolocation=()",
		"gyroscope=()",
		"magnetometer=()",
		"microphone=()",
		"payment=()",
		"usb=()",
		"interest-cohort=()",
	}, ", ")
}
