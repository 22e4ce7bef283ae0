package auth

import (
	"net"
	"net/url"
	"strings"
)

// CookieSettings contains cookie security settings derived from base URL.
type CookieSettings struct {
	// Secure indicates whether the cookie should only be sent over HTTPS.
	Secure bool
	// Domain is the cookie domain scope, e.g. ".chatq.io" so that the
	// session is shared by every tenant subdomain.
	Domain string
}

// DeriveCookieSettings determines cookie settings from the public base URL:
//   - http://localhost:8080 → Secure: false, Domain: ""
//   - https://chatq.io → Secure: true, Domain: ".chatq.io"
//   - https://app.chatq.io → Secure: true, Domain: ".chatq.io"
//   - https://10.0.0.5 → Secure: true, Domain: ""
//
// Tenants are addressed as <company>.<domain>, so the cookie is scoped to
// the registrable parent domain.
func DeriveCookieSettings(baseURL string) CookieSettings {
	parsedURL, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		// Safe defaults for invalid URLs
		return CookieSettings{Secure: true}
	}

	secure := parsedURL.Scheme != "http"
	hostname := parsedURL.Hostname()

	if hostname == "localhost" || net.ParseIP(hostname) != nil {
		return CookieSettings{Secure: secure}
	}

	labels := strings.Split(hostname, ".")
	switch {
	case len(labels) < 2:
		return CookieSettings{Secure: secure}
	case len(labels) == 2:
		return CookieSettings{Secure: secure, Domain: "." + hostname}
	default:
		return CookieSettings{Secure: secure, Domain: "." + strings.Join(labels[1:], ".")}
	}
}
