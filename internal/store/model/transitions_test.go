package model

import "testing"

func TestNextStateOnSignatureSingleSigner(t *testing.T) {
	got := NextStateOnSignature(StateUploaded, 1, 1)
	if got != StateSigned {
		t.Fatalf("got %s, want SIGNED", got)
	}
}

func TestNextStateOnSignatureMultiSigner(t *testing.T) {
	got := NextStateOnSignature(StateUploaded, 1, 2)
	if got != StatePartiallySigned {
		t.Fatalf("got %s, want PARTIALLY_SIGNED", got)
	}
	got = NextStateOnSignature(got, 2, 2)
	if got != StateSigned {
		t.Fatalf("got %s, want SIGNED", got)
	}
}

func TestNextStateOnSignatureTerminalUnaffected(t *testing.T) {
	got := NextStateOnSignature(StateRevoked, 5, 1)
	if got != StateRevoked {
		t.Fatalf("terminal state must not change, got %s", got)
	}
}

func TestCanTransitionRevokeFromAnyNonTerminal(t *testing.T) {
	for _, from := range []DocumentState{StateUploaded, StatePartiallySigned, StateSigned, StateVerified, StateRegistrationPending} {
		if err := CanTransition(from, StateRevoked); err != nil {
			t.Errorf("CanTransition(%s, REVOKED): %v", from, err)
		}
	}
}

func TestCanTransitionRejectsFromTerminal(t *testing.T) {
	if err := CanTransition(StateRevoked, StateSigned); err == nil {
		t.Fatal("expected error moving out of a terminal state")
	}
}

func TestCanTransitionVerifiedOnlyFromSigned(t *testing.T) {
	if err := CanTransition(StateSigned, StateVerified); err != nil {
		t.Errorf("SIGNED -> VERIFIED should be allowed: %v", err)
	}
	if err := CanTransition(StateUploaded, StateVerified); err == nil {
		t.Error("UPLOADED -> VERIFIED should be rejected")
	}
}

func TestDocumentValidateCriticalRequiresTwoSigners(t *testing.T) {
	d := &Document{SecurityLevel: SecurityCritical, SignaturesRequired: 1}
	if err := d.Validate(); err == nil {
		t.Fatal("expected CRITICAL with 1 signer to fail validation")
	}
	d.SignaturesRequired = 2
	if err := d.Validate(); err != nil {
		t.Fatalf("CRITICAL with 2 signers should validate: %v", err)
	}
}

func TestElevates(t *testing.T) {
	if !Elevates(AccessView, AccessEdit) {
		t.Fatal("granting EDIT from a VIEW granter should be an elevation")
	}
	if Elevates(AccessEdit, AccessView) {
		t.Fatal("granting VIEW from an EDIT granter is not an elevation")
	}
}
