package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ClientFingerprint derives an opaque viewer identifier from the client IP
// and user agent. The raw values are never stored.
func ClientFingerprint(ip, userAgent string) string {
	ip = strings.TrimSpace(ip)
	userAgent = strings.TrimSpace(userAgent)
	if ip == "" && userAgent == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:8])
}
