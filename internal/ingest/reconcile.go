package ingest

import (
	"context"

	"github.com/versafe/versafe-core/internal/store/model"
)

// ReconcileRegistrations retries REGISTRATION_PENDING documents whose
// register operation has since cleared the ledger outbox (spec.md §4.5:
// "a crash between steps 4 and 6 leaves a REGISTRATION_PENDING Document;
// a reconciliation pass retries registration from the outbox"). It
// returns the number of documents moved back to UPLOADED. Intended to run
// on a periodic admin/background tick alongside Gateway.RunFlusher, which
// drains the outbox itself; this pass only catches documents back up once
// that drain has produced an authoritative transaction.
func (s *Service) ReconcileRegistrations(ctx context.Context) (int, error) {
	docs, err := s.Documents.ListPendingRegistration(ctx)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, doc := range docs {
		stillQueued, err := s.Ledger.HasPending(doc.ID)
		if err != nil {
			s.logWarn("check outbox pending failed during reconciliation", "document_id", doc.ID.String(), "error", err.Error())
			continue
		}
		if stillQueued {
			continue
		}

		tx, err := s.Ledger.Query(ctx, doc.ID)
		if err != nil {
			s.logWarn("query ledger record failed during reconciliation", "document_id", doc.ID.String(), "error", err.Error())
			continue
		}
		if !tx.IsAuthoritative() {
			continue
		}

		ok, err := s.Documents.SetState(ctx, doc.ID, model.StateRegistrationPending, model.StateUploaded)
		if err != nil {
			s.logWarn("reconcile state transition failed", "document_id", doc.ID.String(), "error", err.Error())
			continue
		}
		if !ok {
			continue
		}
		if err := s.Documents.SetLedgerTx(ctx, doc.ID, tx.TxID, tx.Block); err != nil {
			s.logWarn("reconcile ledger tx persist failed", "document_id", doc.ID.String(), "error", err.Error())
			continue
		}
		reconciled++
	}
	return reconciled, nil
}
