package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const sessionTokenBytes = 32

// GenerateSessionToken returns a hex-encoded random token with 256 bits of
// entropy. Tokens are opaque; validity means a session row exists.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// DeviceFingerprint derives a coarse device identity from the client IP and
// user agent. Two browsers behind the same NAT with identical user agents
// collide; this is a quota heuristic, not a security boundary.
func DeviceFingerprint(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}
