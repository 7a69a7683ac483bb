package model

import (
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// VerificationOutcome is the result of a Verification Service run
// (spec.md §4.7).
type VerificationOutcome string

const (
	VerificationMatch             VerificationOutcome = "MATCH"
	VerificationDigestMismatch    VerificationOutcome = "DIGEST_MISMATCH"
	VerificationLedgerMismatch    VerificationOutcome = "LEDGER_MISMATCH"
	VerificationNotFound          VerificationOutcome = "NOT_FOUND"
	VerificationLedgerUnavailable VerificationOutcome = "LEDGER_UNAVAILABLE"
)

// VerificationEvent is an append-only record of a verify call (spec.md §3).
type VerificationEvent struct {
	ID         idgen.ID
	DocumentID idgen.ID
	VerifierID idgen.ID
	Verified   bool
	Method     string
	Details    string
	CreatedAt  time.Time
}
