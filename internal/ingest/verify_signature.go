package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// VerifySignature implements `verify(signature_id) -> VerificationResult`
// for one signature (spec.md §6: `POST /signatures/{id}/verify`), distinct
// from internal/verification's whole-document re-hash-and-ledger-check.
// It re-runs the signature's own type-specific check (certificate
// validity for DIGITAL; a recorded decision for ELECTRONIC/BIOMETRIC)
// against the owning document's current digest.
func (s *Service) VerifySignature(ctx context.Context, signatureID idgen.ID) (bool, error) {
	sig, err := s.Signatures.Get(ctx, signatureID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return false, apperr.New(apperr.KindNotFound, "signature not found")
		}
		return false, apperr.Internal("get signature for verification", err)
	}
	doc, err := s.Documents.GetByID(ctx, sig.DocumentID)
	if err != nil {
		return false, apperr.Internal("get document for signature verification", err)
	}
	ok, err := s.Signer.Verify(sig, doc.Digest, time.Now())
	if err != nil {
		return false, err
	}
	return ok, nil
}
