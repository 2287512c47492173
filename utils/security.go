// kex/utils/security.go
package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"regexp"
	"strings"

	"kex/config"
)

var (
	// SessionSecret signs every session cookie value. Set once at startup.
	SessionSecret string
)

// GetIPAddress extracts the real IP address from a request, trusting
// proxy headers when present.
func GetIPAddress(r *http.Request) string {
	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SignValue produces a cookie-safe "payload.signature" string whose
// signature is an HMAC-SHA256 over the payload with the session secret.
func SignValue(payload string) string {
	mac := hmac.New(sha256.New, []byte(SessionSecret))
	mac.Write([]byte(payload))
	return payload + "." + hex.EncodeToString(mac.Sum(nil))
}

// VerifyValue checks a signed cookie value and returns the payload.
// Tampered or malformed values return ok=false.
func VerifyValue(signed string) (string, bool) {
	idx := strings.LastIndex(signed, ".")
	if idx < 0 {
		return "", false
	}
	payload, sig := signed[:idx], signed[idx+1:]
	mac := hmac.New(sha256.New, []byte(SessionSecret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return payload, true
}

var nameWhitespace = regexp.MustCompile(`\s`)

// ValidSubmitterName requires a class+name style string: minimum length
// and at least one whitespace separator.
func ValidSubmitterName(name string) bool {
	return len([]rune(name)) >= config.MinNameLen && nameWhitespace.MatchString(name)
}
