package ratelimit

import (
	"net"
	"strings"
)

// ClientIdentity derives the rate-limit identity from the caller's
// network origin: the first hop of a forwarded-for chain when present,
// otherwise the direct peer address.
func ClientIdentity(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := forwardedFor
		if idx := strings.IndexByte(forwardedFor, ','); idx >= 0 {
			first = forwardedFor[:idx]
		}
		if trimmed := strings.TrimSpace(first); trimmed != "" {
			return trimmed
		}
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// SanitizeIdentity strips everything outside [A-Za-z0-9._:-] so the
// identity is safe as a key component. Total: any input maps to a
// (possibly empty) safe string.
func SanitizeIdentity(identity string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == ':' || r == '-':
			return r
		default:
			return -1
		}
	}, identity)
}
