package ingest

import (
	"context"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// UpdatePatch is the set of Document fields `update` may change. Digest,
// state, and ledger fields are never patchable — they only move through
// Upload/Sign/Verify/Revoke (spec.md §3 invariants). Update persists title
// and expiry as metadata-store entries and does not rewrite the documents
// row's title and expiry columns, which keep their upload-time values, so
// DocumentStore's write surface stays limited to the state-machine
// operations spec.md §5 calls out explicitly.
type UpdatePatch struct {
	Title  *string
	Expiry *time.Time
}

// Update implements `update(owner, document_id, patch) -> Document`.
// Patching a terminal document is rejected — a revoked or quarantined
// document never changes again.
func (s *Service) Update(ctx context.Context, owner, documentID idgen.ID, patch UpdatePatch) (*model.Document, error) {
	doc, err := s.Get(ctx, owner, documentID)
	if err != nil {
		return nil, err
	}
	if doc.State.IsTerminal() {
		return nil, apperr.Wrap(apperr.KindConflict, "document is in a terminal state", apperr.ErrTerminalState)
	}

	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Expiry != nil {
		doc.Expiry = patch.Expiry
	}

	kv := map[string]string{"title": doc.Title}
	if doc.Expiry != nil {
		kv["expiry"] = doc.Expiry.UTC().Format(time.RFC3339)
	}
	if err := s.Metadata.PutAll(ctx, doc.ID, kv); err != nil {
		return nil, apperr.Internal("persist document update", err)
	}
	return doc, nil
}

// Revoke implements `revoke(owner, document_id, reason) -> Document`
// (spec.md §4.5, §8 invariant #7: idempotent, irreversible). The ledger
// revoke call runs after the local state change; a sustained ledger
// failure is outbox-safe and does not block the local revoke from taking
// effect.
func (s *Service) Revoke(ctx context.Context, owner, documentID idgen.ID, reason string) (*model.Document, error) {
	doc, err := s.Get(ctx, owner, documentID)
	if err != nil {
		return nil, err
	}
	if doc.State == model.StateRevoked {
		return doc, nil
	}
	if err := model.CanTransition(doc.State, model.StateRevoked); err != nil {
		return nil, apperr.Wrap(apperr.KindConflict, "document cannot be revoked from its current state", err)
	}

	if err := s.Documents.Revoke(ctx, documentID, reason); err != nil {
		return nil, apperr.Internal("revoke document", err)
	}
	doc.State = model.StateRevoked
	doc.RevokedReason = reason

	if _, _, err := s.Ledger.Revoke(ctx, documentID, reason); err != nil {
		s.logWarn("ledger revoke failed, queued for retry", "document_id", documentID.String(), "error", err.Error())
	}

	s.audit(ctx, AuditEntry{
		Action:       "Revoke",
		UserID:       owner,
		ResourceKind: "document",
		ResourceID:   documentID.String(),
		RequestMeta:  map[string]string{"reason": reason},
		StatusCode:   200,
	})
	return doc, nil
}
