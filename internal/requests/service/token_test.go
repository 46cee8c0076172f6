package service

import (
	"testing"
	"time"
)

func TestTokenIssuer_Issue(t *testing.T) {
	fixed := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	issuer := &TokenIssuer{
		ttl: 15 * time.Minute,
		now: func() time.Time { return fixed },
	}

	token, expiry, err := issuer.Issue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 32 bytes of entropy encode to 43 URL-safe characters.
	if len(token) != 43 {
		t.Errorf("expected 43-character token, got %d: %q", len(token), token)
	}

	want := fixed.Add(15 * time.Minute)
	if !expiry.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, expiry)
	}
}

func TestTokenIssuer_TokensAreUnique(t *testing.T) {
	issuer := NewTokenIssuer(time.Minute)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := issuer.Issue()
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if seen[token] {
			t.Fatalf("iteration %d: duplicate token issued", i)
		}
		seen[token] = true
	}
}
