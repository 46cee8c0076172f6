package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// tokenBytes is the raw entropy per action token. 32 bytes encode to a
// 43-character URL-safe string; guessing one is not feasible.
const tokenBytes = 32

// TokenIssuer mints the single-use credentials embedded in action links.
// Validation and consumption happen in the repository so the
// compare-and-clear is one conditional update.
type TokenIssuer struct {
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		ttl: ttl,
		now: time.Now,
	}
}

// Issue returns a fresh token and its expiry.
func (t *TokenIssuer) Issue() (string, time.Time, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate action token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), t.now().Add(t.ttl), nil
}
