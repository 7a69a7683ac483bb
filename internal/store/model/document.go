package model

import (
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// DigestAlgo is one of the fingerprint algorithms spec.md §3 allows.
type DigestAlgo string

const (
	AlgoSHA256     DigestAlgo = "SHA-256"
	AlgoSHA3_256   DigestAlgo = "SHA-3-256"
	AlgoBLAKE2b256 DigestAlgo = "BLAKE2b-256"
)

// SecurityLevel gates policy: CRITICAL documents need a dual hash and at
// least two signers (spec.md §3).
type SecurityLevel string

const (
	SecurityLow      SecurityLevel = "LOW"
	SecurityMedium   SecurityLevel = "MEDIUM"
	SecurityHigh     SecurityLevel = "HIGH"
	SecurityCritical SecurityLevel = "CRITICAL"
)

// DocumentState is the state machine from spec.md §3:
//
//	UPLOADED -> PARTIALLY_SIGNED -> SIGNED -> VERIFIED
//	  any non-terminal -> REVOKED (irreversible)
//	  any non-terminal -> EXPIRED (irreversible)
//	  UPLOADED -> REGISTRATION_PENDING -> UPLOADED (ledger catch-up)
//	  UPLOADED -> QUARANTINED (integrity failure, sub-state of UPLOADED)
type DocumentState string

const (
	StateRegistrationPending DocumentState = "REGISTRATION_PENDING"
	StateUploaded            DocumentState = "UPLOADED"
	StatePartiallySigned     DocumentState = "PARTIALLY_SIGNED"
	StateSigned              DocumentState = "SIGNED"
	StateVerified            DocumentState = "VERIFIED"
	StateRevoked              DocumentState = "REVOKED"
	StateExpired              DocumentState = "EXPIRED"
	StateQuarantined          DocumentState = "QUARANTINED"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s DocumentState) IsTerminal() bool {
	switch s {
	case StateRevoked, StateExpired, StateQuarantined:
		return true
	default:
		return false
	}
}

// AcceptsSignatures reports whether a document in state s may receive a
// new Signature (spec.md §4.6 preconditions).
func (s DocumentState) AcceptsSignatures() bool {
	return s == StateUploaded || s == StatePartiallySigned
}

// Document is the central entity of the ingest/signature/verification
// pipeline (spec.md §3).
type Document struct {
	ID                 idgen.ID
	OwnerID            idgen.ID
	Title              string
	FileName           string
	MediaType          string
	SizeBytes          int64
	StorageRef         string
	DigestAlgo         DigestAlgo
	Digest             []byte
	// SecondaryDigestAlgo/SecondaryDigest hold the second independent
	// fingerprint required for SecurityCritical documents (spec.md §4.3,
	// Open Question #2, resolved in DESIGN.md: CRITICAL requires it).
	SecondaryDigestAlgo DigestAlgo
	SecondaryDigest     []byte
	SecurityLevel       SecurityLevel
	SignaturesRequired  int
	State               DocumentState
	ScanWarn            bool
	LedgerTxID          string
	LedgerBlock         int64
	HasLedgerBlock      bool
	Expiry              *time.Time
	RevokedReason       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate enforces the invariants listed in spec.md §3 that don't depend
// on database state: signatures_required >= 1 and CRITICAL needs >= 2.
// The dual-hash requirement for CRITICAL documents is not checked here.
func (d *Document) Validate() error {
	if d.SignaturesRequired < 1 {
		return errInvalidSignaturesRequired
	}
	if d.SecurityLevel == SecurityCritical && d.SignaturesRequired < 2 {
		return errCriticalNeedsTwoSigners
	}
	return nil
}

// IsExpired reports whether now is at or past d.Expiry.
func (d *Document) IsExpired(now time.Time) bool {
	return d.Expiry != nil && !now.Before(*d.Expiry)
}
