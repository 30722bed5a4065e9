package devicegate

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const (
	tokenBytes    = 32
	deviceIDBytes = 12
)

// NewToken returns a fresh device token: 32 random bytes, base64url
// without padding.
func NewToken() (string, error) { return randomString(tokenBytes) }

// NewDeviceID returns a fresh device id: 12 random bytes, base64url
// without padding.
func NewDeviceID() (string, error) { return randomString(deviceIDBytes) }

// HashToken is the value stored server side for a device token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
