package provider

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// sessionIDSize is the number of random bytes behind a session ID.
const sessionIDSize = 16

// newSessionID returns a fresh session ID as unpadded base64url.
func newSessionID() (string, error) {
	var raw [sessionIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// checkSessionID rejects a token sid that newSessionID could not have produced.
func checkSessionID(sid string) error {
	if base64.RawURLEncoding.DecodedLen(len(sid)) != sessionIDSize {
		return fmt.Errorf("session id %q has wrong length", sid)
	}
	if _, err := base64.RawURLEncoding.DecodeString(sid); err != nil {
		return fmt.Errorf("session id %q is not base64url: %w", sid, err)
	}
	return nil
}
