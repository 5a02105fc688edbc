// Package identity derives the stable per-voter identity used for vote
// deduplication: a client-supplied fingerprint plus a peppered hash of the
// client IP. Raw IPs are never persisted.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// fingerprintLength is the expected hex length of a client fingerprint,
// a 256-bit value.
const fingerprintLength = 64

// Hasher derives peppered identity hashes. The pepper is a required server
// secret validated at configuration load.
type Hasher struct {
	pepper string
}

// NewHasher returns a Hasher using the given pepper.
func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper}
}

// HashIP hashes an IP address with the server-side pepper, returning a hex
// SHA-256 digest.
func (h *Hasher) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(h.pepper + ip))
	return hex.EncodeToString(sum[:])
}

// HashToken hashes an admin API token with the server-side pepper. Shares
// the IP hashing scheme so operators can generate token digests the same
// way.
func (h *Hasher) HashToken(token string) string {
	return h.HashIP(token)
}

// ValidFingerprint reports whether fingerprint is exactly 64 hex
// characters. Fingerprints are opaque client identities accepted as-is,
// only their shape is validated.
func ValidFingerprint(fingerprint string) bool {
	if len(fingerprint) != fingerprintLength {
		return false
	}
	for _, r := range fingerprint {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// ClientIP extracts the client IP from a request, preferring proxy headers
// set by the reverse proxy: the first X-Forwarded-For entry, then
// X-Real-IP, then the transport peer address. Returns "unknown" when
// nothing usable is present.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}

// ForRequest returns the (fingerprintHash, ipHash) identity pair for a
// request. The fingerprint is already hashed client-side and is used
// as-is.
func (h *Hasher) ForRequest(r *http.Request, fingerprint string) (fingerprintHash, ipHash string) {
	return fingerprint, h.HashIP(ClientIP(r))
}
