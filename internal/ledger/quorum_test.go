package ledger

import "testing"

func TestQuorumSatisfiesRequiresMinSizeAndDistinctEndorser(t *testing.T) {
	q := NewQuorum([]string{"alice", "bob", "carol"}, 2)

	endorsements := []Endorsement{
		{Identity: "alice"},
		{Identity: "bob"},
	}
	if !q.Satisfies(endorsements, "") {
		t.Fatal("expected two distinct known endorsers to satisfy the quorum")
	}

	if q.Satisfies(endorsements[:1], "") {
		t.Fatal("expected a single endorser to fail a minSize-2 quorum")
	}

	// All endorsers share identity with the signer: only one distinct
	// identity, so the size-2 quorum is not met, and no endorser is
	// distinct from the signer either.
	signerOnly := []Endorsement{
		{Identity: "alice"},
		{Identity: "alice"},
	}
	if q.Satisfies(signerOnly, "alice") {
		t.Fatal("expected quorum to fail without an endorser distinct from the signer")
	}

	mixed := []Endorsement{
		{Identity: "alice"},
		{Identity: "bob"},
	}
	if !q.Satisfies(mixed, "alice") {
		t.Fatal("expected bob to satisfy the distinct-from-signer requirement")
	}
}

func TestQuorumIgnoresUnknownIdentities(t *testing.T) {
	q := NewQuorum([]string{"alice", "bob"}, 2)
	endorsements := []Endorsement{
		{Identity: "alice"},
		{Identity: "mallory"},
	}
	if q.Satisfies(endorsements, "") {
		t.Fatal("expected an unknown identity not to count toward the quorum")
	}
}
