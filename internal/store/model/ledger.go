package model

import (
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// LedgerTxKind is one of the four ledger operation kinds from spec.md §3.
type LedgerTxKind string

const (
	LedgerKindRegister    LedgerTxKind = "REGISTER"
	LedgerKindStateUpdate LedgerTxKind = "STATE_UPDATE"
	LedgerKindSignature   LedgerTxKind = "SIGNATURE"
	LedgerKindRevoke      LedgerTxKind = "REVOKE"
)

// LedgerTxStatus tracks confirmation progress (spec.md §3). SIMULATED
// carries the same shape as CONFIRMED but is explicitly non-authoritative
// (Open Question #3 in spec.md §9, resolved: always flagged to the client).
type LedgerTxStatus string

const (
	LedgerStatusPending   LedgerTxStatus = "PENDING"
	LedgerStatusConfirmed LedgerTxStatus = "CONFIRMED"
	LedgerStatusRejected  LedgerTxStatus = "REJECTED"
	LedgerStatusSimulated LedgerTxStatus = "SIMULATED"
)

// Endorsement is one endorsing identity's attestation on a submitted
// transaction (spec.md glossary).
type Endorsement struct {
	Identity  string
	Signature []byte
}

// LedgerTransaction is VerSafe's local record of a ledger operation
// (spec.md §3). Once Status is CONFIRMED the row is never mutated again.
type LedgerTransaction struct {
	TxID         string
	DocumentID   idgen.ID
	Kind         LedgerTxKind
	Block        int64
	BlockHash    string
	PayloadHash  []byte
	Endorsements []Endorsement
	DedupKey     string
	SubmittedAt  time.Time
	ConfirmedAt  time.Time
	HasConfirmed bool
	Status       LedgerTxStatus
}

// IsAuthoritative reports whether the record reflects a real, confirmed
// ledger commit rather than a simulator placeholder.
func (t *LedgerTransaction) IsAuthoritative() bool {
	return t.Status == LedgerStatusConfirmed
}
