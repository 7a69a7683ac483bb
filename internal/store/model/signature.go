package model

import (
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// SignatureType is the tagged variant from spec.md §3/§4.6.
type SignatureType string

const (
	SignatureElectronic SignatureType = "ELECTRONIC"
	SignatureDigital    SignatureType = "DIGITAL"
	SignatureBiometric  SignatureType = "BIOMETRIC"
)

// Signature records one signer's act of signing a Document (spec.md §3).
// (document_id, signer_id) is unique; signer_hash is stable once created.
type Signature struct {
	ID                 idgen.ID
	DocumentID         idgen.ID
	SignerID           idgen.ID
	Type               SignatureType
	Payload            []byte
	SignerHash         []byte
	VerificationMethod string
	Verified           bool
	LedgerTxID         string
	HasLedgerTx        bool
	CreatedAt          time.Time
}
