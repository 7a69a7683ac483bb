package signature

import (
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// SignRequest carries everything a type-specific producer needs. The
// caller (internal/ingest) resolves DocumentDigest, prior-signature
// checks, and (for DIGITAL) the signer's Key before calling Produce —
// Engine itself never touches the Metadata Store.
type SignRequest struct {
	DocumentID     idgen.ID
	DocumentDigest []byte
	SignerID       idgen.ID
	Type           model.SignatureType
	Payload        []byte
	Confidence     float64 // BIOMETRIC only
	Nonce          []byte
	Now            time.Time
	Key            *Key // DIGITAL only
}

// producedFields is what a type-specific producer computes; Produce wraps
// it into a full model.Signature.
type producedFields struct {
	Payload            []byte
	VerificationMethod string
	Verified           bool
}

// Handler is one signature type's producer, dispatched by Registry the
// same way internal/ledger dispatches LedgerTxKind.
type Handler func(e *Engine, req SignRequest) (producedFields, error)

// Registry maps a SignatureType to its Handler.
type Registry struct {
	handlers map[model.SignatureType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[model.SignatureType]Handler)}
}

func (r *Registry) register(t model.SignatureType, h Handler) {
	r.handlers[t] = h
}

func (r *Registry) lookup(t model.SignatureType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("signature: no producer registered for type %q", t)
	}
	return h, nil
}

func defaultRegistry() *Registry {
	r := NewRegistry()
	r.register(model.SignatureElectronic, produceElectronic)
	r.register(model.SignatureDigital, produceDigital)
	r.register(model.SignatureBiometric, produceBiometric)
	return r
}

// Engine produces and verifies Signatures. It never persists anything —
// internal/ingest owns the per-document transaction that inserts the row,
// submits to the Ledger Gateway, and advances Document.State.
type Engine struct {
	Keys               KeyStore
	Certs              CertStore
	BiometricThreshold float64
	registry           *Registry
}

func NewEngine(keys KeyStore, certs CertStore, biometricThreshold float64) *Engine {
	return &Engine{Keys: keys, Certs: certs, BiometricThreshold: biometricThreshold, registry: defaultRegistry()}
}

// CheckPreconditions enforces spec.md §4.6's `sign` preconditions: the
// document must accept signatures, must not be terminal, the signer must
// not have already signed, and DIGITAL requires enrolled key material.
func CheckPreconditions(e *Engine, doc *model.Document, signerID idgen.ID, sigType model.SignatureType, alreadySigned bool) error {
	if doc.State.IsTerminal() {
		return apperr.Wrap(apperr.KindConflict, "document is in a terminal state", apperr.ErrTerminalState)
	}
	if !doc.State.AcceptsSignatures() {
		return apperr.Wrap(apperr.KindConflict, "document is not in a state that accepts signatures", apperr.ErrInvalidDocState)
	}
	if alreadySigned {
		return apperr.Wrap(apperr.KindConflict, "signer has already signed this document", apperr.ErrAlreadySigned)
	}
	if sigType == model.SignatureDigital && (e.Keys == nil || !e.Keys.Has(signerID.String())) {
		return apperr.Wrap(apperr.KindValidation, "signer has no enrolled key pair for DIGITAL signatures", apperr.ErrNoKeyMaterial)
	}
	return nil
}

// Produce dispatches req to its type's Handler and returns a fully
// populated (but not yet persisted) Signature, including the shared
// signer_hash formula (spec.md §4.6).
func (e *Engine) Produce(req SignRequest) (*model.Signature, error) {
	handler, err := e.registry.lookup(req.Type)
	if err != nil {
		return nil, apperr.Internal("signature dispatch", err)
	}
	fields, err := handler(e, req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "signature production failed", err)
	}

	return &model.Signature{
		ID:                 idgen.New(),
		DocumentID:         req.DocumentID,
		SignerID:           req.SignerID,
		Type:               req.Type,
		Payload:            fields.Payload,
		SignerHash:         signerHash(req.DocumentDigest, req.SignerID, req.Now, req.Nonce),
		VerificationMethod: fields.VerificationMethod,
		Verified:           fields.Verified,
		CreatedAt:          req.Now,
	}, nil
}

// Verify implements the `verify(signature_id) -> VerificationResult`
// operation: only DIGITAL signatures have anything left to recompute
// (certificate validity/revocation, signature bytes); ELECTRONIC and
// BIOMETRIC report the decision already recorded at production time.
func (e *Engine) Verify(sig *model.Signature, documentDigest []byte, now time.Time) (bool, error) {
	switch sig.Type {
	case model.SignatureElectronic:
		return verifyElectronic(sig)
	case model.SignatureBiometric:
		return verifyBiometric(sig)
	case model.SignatureDigital:
		return verifyDigital(e.Certs, sig, documentDigest, KeyAlgo(sig.VerificationMethod), now)
	default:
		return false, fmt.Errorf("signature: unsupported signature type %q", sig.Type)
	}
}
