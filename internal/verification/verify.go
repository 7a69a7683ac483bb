package verification

import (
	"bytes"
	"context"
	"errors"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// Result is what Verify returns: the outcome plus the document as it
// stood after any state transition the outcome triggered.
type Result struct {
	Outcome  model.VerificationOutcome
	Document *model.Document
}

// Verify implements `verify(document_id) -> VerificationResult` (spec.md
// §4.7). LEDGER_UNAVAILABLE is returned indeterminate without mutating
// state; DIGEST_MISMATCH moves the document to QUARANTINED and emits a
// security audit record (scenario S5); MATCH appends a VerificationEvent
// and, if the document is SIGNED, submits an outbox-safe VERIFIED
// transition.
func (s *Service) Verify(ctx context.Context, documentID, verifierID idgen.ID) (Result, error) {
	res, err := s.verify(ctx, documentID, verifierID)
	if err == nil && s.Metrics != nil {
		s.Metrics.VerificationTotal.WithLabelValues(string(res.Outcome)).Inc()
	}
	return res, err
}

func (s *Service) verify(ctx context.Context, documentID, verifierID idgen.ID) (Result, error) {
	doc, err := s.Documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return Result{Outcome: model.VerificationNotFound}, nil
		}
		return Result{}, apperr.Internal("get document for verification", err)
	}

	recomputed, err := s.rehash(ctx, doc)
	if err != nil {
		return Result{}, err
	}

	if !bytes.Equal(recomputed.Primary.Bytes, doc.Digest) || !s.secondaryMatches(recomputed, doc) {
		return s.onDigestMismatch(ctx, doc, verifierID)
	}

	ltx, err := s.Ledger.Query(ctx, documentID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			// The document exists locally but the ledger has no record of
			// it at all — a mismatch, not an availability problem.
			return s.onLedgerMismatch(ctx, doc, verifierID)
		}
		return Result{Outcome: model.VerificationLedgerUnavailable, Document: doc}, nil
	}
	if !ltx.IsAuthoritative() || doc.State == model.StateRevoked {
		return s.onLedgerMismatch(ctx, doc, verifierID)
	}

	return s.onMatch(ctx, doc, verifierID)
}

func (s *Service) secondaryMatches(recomputed hashing.Result, doc *model.Document) bool {
	if doc.SecondaryDigestAlgo == "" {
		return true
	}
	return recomputed.Secondary != nil && bytes.Equal(recomputed.Secondary.Bytes, doc.SecondaryDigest)
}

func (s *Service) onDigestMismatch(ctx context.Context, doc *model.Document, verifierID idgen.ID) (Result, error) {
	if _, err := s.Documents.SetState(ctx, doc.ID, doc.State, model.StateQuarantined); err != nil {
		s.logWarn("quarantine transition failed after digest mismatch", "document_id", doc.ID.String(), "error", err.Error())
	} else {
		doc.State = model.StateQuarantined
	}
	s.recordEvent(ctx, doc.ID, verifierID, false, "digest mismatch detected on verify")
	s.audit(ctx, AuditEntry{
		Action: "SecurityRejected", UserID: verifierID, ResourceKind: "document",
		ResourceID: doc.ID.String(), RequestMeta: map[string]string{"reason": "digest_mismatch"}, StatusCode: 409,
	})
	return Result{Outcome: model.VerificationDigestMismatch, Document: doc}, nil
}

func (s *Service) onLedgerMismatch(ctx context.Context, doc *model.Document, verifierID idgen.ID) (Result, error) {
	s.recordEvent(ctx, doc.ID, verifierID, false, "ledger record does not match stored document")
	return Result{Outcome: model.VerificationLedgerMismatch, Document: doc}, nil
}

func (s *Service) onMatch(ctx context.Context, doc *model.Document, verifierID idgen.ID) (Result, error) {
	s.recordEvent(ctx, doc.ID, verifierID, true, "digest and ledger record match")

	if doc.State == model.StateSigned {
		if ok, err := s.Documents.SetState(ctx, doc.ID, model.StateSigned, model.StateVerified); err != nil {
			s.logWarn("verified transition failed", "document_id", doc.ID.String(), "error", err.Error())
		} else if ok {
			doc.State = model.StateVerified
			if _, _, err := s.Ledger.UpdateState(ctx, doc.ID, model.StateVerified, nil); err != nil {
				s.logWarn("ledger update_state(VERIFIED) failed, queued for retry", "document_id", doc.ID.String(), "error", err.Error())
			}
		}
	}
	return Result{Outcome: model.VerificationMatch, Document: doc}, nil
}

func (s *Service) recordEvent(ctx context.Context, documentID, verifierID idgen.ID, verified bool, details string) {
	evt := &model.VerificationEvent{
		ID: idgen.New(), DocumentID: documentID, VerifierID: verifierID,
		Verified: verified, Method: "rehash", Details: details,
	}
	if err := s.Events.Append(ctx, evt); err != nil {
		s.logWarn("append verification event failed", "document_id", documentID.String(), "error", err.Error())
	}
}
