package ingest

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/signature"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// SignInput is the input to Service.Sign (spec.md §4.6:
// `sign(signer, document_id, type, payload, metadata) -> Signature`).
// Passphrase is only consulted for SignatureDigital, to unlock the
// signer's enrolled key.
type SignInput struct {
	DocumentID idgen.ID
	SignerID   idgen.ID
	Type       model.SignatureType
	Payload    []byte
	Confidence float64
	Passphrase string
}

// Sign produces a Signature, persists it alongside the resulting Document
// state transition in one transaction, then submits record_signature to
// the Ledger Gateway after that transaction commits — spec.md §5: "no
// handler holds a database transaction across a network call to another
// service". A ledger failure here is outbox-safe: the signature is
// already durable by the time the ledger call runs.
func (s *Service) Sign(ctx context.Context, req SignInput) (*model.Signature, error) {
	doc, err := s.Documents.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "document not found")
		}
		return nil, apperr.Internal("get document for signing", err)
	}

	var key *signature.Key
	if req.Type == model.SignatureDigital {
		key, err = s.Signer.Keys.Get(req.SignerID.String(), req.Passphrase)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindAuth, "could not unlock signing key", err)
		}
	}

	if err := signature.CheckPreconditions(s.Signer, doc, req.SignerID, req.Type, false); err != nil {
		return nil, err
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperr.Internal("generate signing nonce", err)
	}

	sig, err := s.Signer.Produce(signature.SignRequest{
		DocumentID:     req.DocumentID,
		DocumentDigest: doc.Digest,
		SignerID:       req.SignerID,
		Type:           req.Type,
		Payload:        req.Payload,
		Confidence:     req.Confidence,
		Nonce:          nonce,
		Now:            time.Now(),
		Key:            key,
	})
	if err != nil {
		return nil, err
	}

	var nextState model.DocumentState
	err = s.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.Documents.LockForUpdate(ctx, tx, req.DocumentID)
		if err != nil {
			return apperr.Internal("lock document for signing", err)
		}
		if locked.State.IsTerminal() {
			return apperr.Wrap(apperr.KindConflict, "document is in a terminal state", apperr.ErrTerminalState)
		}
		if !locked.State.AcceptsSignatures() {
			return apperr.Wrap(apperr.KindConflict, "document does not accept signatures in its current state", apperr.ErrInvalidDocState)
		}

		if err := s.Signatures.Create(ctx, tx, sig); err != nil {
			if errors.Is(err, postgres.ErrDuplicate) {
				return apperr.Wrap(apperr.KindConflict, "signer has already signed this document", apperr.ErrAlreadySigned)
			}
			return apperr.Internal("create signature row", err)
		}

		count, err := s.Signatures.CountValid(ctx, tx, req.DocumentID)
		if err != nil {
			return apperr.Internal("count valid signatures", err)
		}
		next := model.NextStateOnSignature(locked.State, count, locked.SignaturesRequired)
		nextState = locked.State
		if next != locked.State {
			ok, err := s.Documents.SetStateTx(ctx, tx, req.DocumentID, locked.State, next)
			if err != nil {
				return apperr.Internal("advance document state", err)
			}
			if !ok {
				return apperr.Internal("advance document state", fmt.Errorf("concurrent state change for document %s", req.DocumentID))
			}
			nextState = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	doc.State = nextState
	if s.Metrics != nil {
		s.Metrics.SignaturesProduced.WithLabelValues(string(req.Type)).Inc()
	}

	ltx, pending, err := s.Ledger.RecordSignature(ctx, req.DocumentID, sig.ID.String(), req.SignerID.String(), sig.SignerHash)
	if err != nil {
		s.logWarn("ledger record_signature failed, queued for retry", "signature_id", sig.ID.String(), "error", err.Error())
	} else if !pending && ltx != nil {
		if err := s.Signatures.SetLedgerTx(ctx, sig.ID, ltx.TxID); err != nil {
			s.logWarn("persist signature ledger tx id failed", "signature_id", sig.ID.String(), "error", err.Error())
		} else {
			sig.LedgerTxID = ltx.TxID
			sig.HasLedgerTx = true
		}
	}

	if nextState == model.StateSigned {
		if _, _, err := s.Ledger.UpdateState(ctx, req.DocumentID, model.StateSigned, nil); err != nil {
			s.logWarn("ledger update_state(SIGNED) failed, queued for retry", "document_id", req.DocumentID.String(), "error", err.Error())
		}
	}

	s.audit(ctx, AuditEntry{
		Action:       "Sign",
		UserID:       req.SignerID,
		ResourceKind: "document",
		ResourceID:   req.DocumentID.String(),
		RequestMeta:  map[string]string{"type": string(req.Type)},
		StatusCode:   201,
	})
	return sig, nil
}

// ListSignatures lists every signature recorded for a document, newest first
// (backs `GET /signatures/document/{document_id}`).
func (s *Service) ListSignatures(ctx context.Context, documentID idgen.ID) ([]*model.Signature, error) {
	sigs, err := s.Signatures.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, apperr.Internal("list signatures", err)
	}
	return sigs, nil
}
