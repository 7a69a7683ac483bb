package identity

import (
	"testing"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	keys, err := NewKeySet([]string{"test-signing-secret-one"})
	if err != nil {
		t.Fatalf("NewKeySet: %v", err)
	}
	issuer := NewIssuer(keys, time.Minute, time.Hour)
	verifier := NewVerifier(keys)

	want := Principal{UserID: idgen.New(), Email: "alice@example.com"}
	pair, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := verifier.Verify(pair.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.UserID != want.UserID || got.Email != want.Email {
		t.Fatalf("Verify returned %+v, want %+v", got, want)
	}
}

func TestVerifyRejectsUnknownKey(t *testing.T) {
	keysA, _ := NewKeySet([]string{"secret-a"})
	keysB, _ := NewKeySet([]string{"secret-b"})
	issuer := NewIssuer(keysA, time.Minute, time.Hour)
	verifier := NewVerifier(keysB)

	pair, err := issuer.Issue(Principal{UserID: idgen.New(), Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(pair.Token); err != ErrUnknownKey {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	keys, _ := NewKeySet([]string{"secret"})
	issuer := NewIssuer(keys, -time.Minute, time.Hour)
	verifier := NewVerifier(keys)

	pair, err := issuer.Issue(Principal{UserID: idgen.New(), Email: "carol@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(pair.Token); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCachingVerifierReusesCachedResult(t *testing.T) {
	keys, _ := NewKeySet([]string{"secret"})
	issuer := NewIssuer(keys, time.Minute, time.Hour)
	cv, err := NewCachingVerifier(NewVerifier(keys), 16)
	if err != nil {
		t.Fatalf("NewCachingVerifier: %v", err)
	}

	want := Principal{UserID: idgen.New(), Email: "dave@example.com"}
	pair, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := cv.Verify(pair.Token)
		if err != nil {
			t.Fatalf("Verify iteration %d: %v", i, err)
		}
		if got.UserID != want.UserID {
			t.Fatalf("iteration %d: got %+v, want %+v", i, got, want)
		}
	}
}
