package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address the request originated from. Proxy headers
// win over the socket address; the first X-Forwarded-For hop is the client.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return normalizeIP(ip)
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return normalizeIP(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return normalizeIP(ip)
}

func normalizeIP(ip string) string {
	ip = strings.Trim(ip, "[]")
	if ip == "::1" {
		return "127.0.0.1"
	}
	return ip
}

// SessionID returns the anonymous session identifier sent with the request
func SessionID(r *http.Request) string {
	if sid := strings.TrimSpace(r.Header.Get("X-Session-ID")); sid != "" {
		return sid
	}
	if c, err := r.Cookie("sessionid"); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
