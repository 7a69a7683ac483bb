package ingest

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/scanner"
	"github.com/versafe/versafe-core/internal/store/model"
)

// UploadRequest is the input to Service.Upload (spec.md §4.5:
// `upload(owner, stream, metadata) -> Document`).
type UploadRequest struct {
	OwnerID            idgen.ID
	Title              string
	FileName           string
	MediaType          string
	SecurityLevel      model.SecurityLevel
	SignaturesRequired int
	Expiry             *time.Time
	Content            io.Reader
}

// Upload runs the seven-step ingest algorithm (spec.md §4.5): allow-list
// and size check, hash, conditional scan, insert-then-register, and
// best-effort metadata extraction. Two concurrent uploads of identical
// bytes by the same owner each get their own Document and digest
// registration — there is no content-addressed dedup at this layer.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*model.Document, error) {
	if !s.allowedMediaTypes[req.MediaType] {
		return nil, apperr.Wrap(apperr.KindValidation, "media type not allowed", ErrMediaTypeNotAllowed)
	}
	if req.SignaturesRequired < 1 {
		req.SignaturesRequired = 1
	}

	data, err := io.ReadAll(io.LimitReader(req.Content, s.maxUploadBytes+1))
	if err != nil {
		return nil, apperr.Internal("read upload stream", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, apperr.Wrap(apperr.KindValidation, "file exceeds maximum upload size", ErrFileTooLarge)
	}

	primaryAlgo := model.AlgoSHA256
	var secondaryAlgo model.DigestAlgo
	critical := req.SecurityLevel == model.SecurityCritical
	if critical {
		secondaryAlgo = hashing.DefaultSecondaryFor(primaryAlgo)
	}
	result, err := s.hash(ctx, bytes.NewReader(data), primaryAlgo, secondaryAlgo)
	if err != nil {
		return nil, err
	}

	ref, size, err := s.Files.Put(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Internal("persist upload", err)
	}

	if critical {
		if err := s.verifyStoredDigest(ctx, ref, result, primaryAlgo, secondaryAlgo); err != nil {
			_ = s.Files.Delete(ctx, ref)
			return nil, err
		}
	}

	scanWarn := false
	if req.MediaType == "application/pdf" {
		verdict, _ := s.Scanner.Scan(ctx, result.Primary.Bytes, req.MediaType, data)
		policy := scanner.Apply(verdict)
		if policy.Abort {
			_ = s.Files.Delete(ctx, ref)
			s.audit(ctx, AuditEntry{
				Action:       "SecurityRejected",
				UserID:       req.OwnerID,
				ResourceKind: "document",
				ResourceID:   req.FileName,
				RequestMeta:  map[string]string{"media_type": req.MediaType, "verdict": string(verdict.Verdict)},
				StatusCode:   400,
			})
			return nil, apperr.Wrap(apperr.KindSecurity, "malware scanner rejected this document", ErrSecurityRejected)
		}
		scanWarn = policy.Warn
	}

	now := time.Now()
	doc := &model.Document{
		ID:                 idgen.New(),
		OwnerID:            req.OwnerID,
		Title:              req.Title,
		FileName:           req.FileName,
		MediaType:          req.MediaType,
		SizeBytes:          size,
		StorageRef:         ref,
		DigestAlgo:         primaryAlgo,
		Digest:             result.Primary.Bytes,
		SecurityLevel:      req.SecurityLevel,
		SignaturesRequired: req.SignaturesRequired,
		State:              model.StateUploaded,
		ScanWarn:           scanWarn,
		Expiry:             req.Expiry,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if result.Secondary != nil {
		doc.SecondaryDigestAlgo = result.Secondary.Algo
		doc.SecondaryDigest = result.Secondary.Bytes
	}
	if err := doc.Validate(); err != nil {
		_ = s.Files.Delete(ctx, ref)
		return nil, apperr.Wrap(apperr.KindValidation, "invalid document", err)
	}

	if err := s.Documents.Create(ctx, doc); err != nil {
		_ = s.Files.Delete(ctx, ref)
		return nil, apperr.Internal("create document row", err)
	}
	if s.Metrics != nil {
		s.Metrics.DocumentsIngested.Inc()
	}

	if meta := extractMetadata(req.MediaType, data); len(meta) > 0 {
		if err := s.Metadata.PutAll(ctx, doc.ID, meta); err != nil {
			s.logWarn("metadata extraction persist failed", "document_id", doc.ID.String(), "error", err.Error())
		}
	}

	s.registerOnLedger(ctx, doc)

	s.audit(ctx, AuditEntry{
		Action:       "Upload",
		UserID:       req.OwnerID,
		ResourceKind: "document",
		ResourceID:   doc.ID.String(),
		StatusCode:   201,
	})
	return doc, nil
}

// registerOnLedger submits the register operation and reconciles
// doc/document-row state with the outcome. A sustained failure marks the
// document REGISTRATION_PENDING rather than rolling back the insert
// (spec.md §4.5 step 4); a non-authoritative (simulated) success leaves
// ledger_tx_id unset so a later confirmed registration can still be
// recorded — ledger_tx_id is set exactly once, on the authoritative tx.
func (s *Service) registerOnLedger(ctx context.Context, doc *model.Document) {
	tx, pending, err := s.Ledger.Register(ctx, doc.ID, doc.Digest, string(doc.DigestAlgo), doc.OwnerID.String(), doc.FileName)
	if err != nil {
		if ok, setErr := s.Documents.SetState(ctx, doc.ID, model.StateUploaded, model.StateRegistrationPending); setErr != nil || !ok {
			s.logWarn("mark document registration-pending failed", "document_id", doc.ID.String())
		}
		doc.State = model.StateRegistrationPending
		s.logWarn("ledger register failed, document pending reconciliation", "document_id", doc.ID.String(), "error", err.Error())
		return
	}
	if pending || tx == nil {
		return
	}
	if err := s.Documents.SetLedgerTx(ctx, doc.ID, tx.TxID, tx.Block); err != nil {
		s.logWarn("persist ledger tx id failed", "document_id", doc.ID.String(), "error", err.Error())
		return
	}
	doc.LedgerTxID = tx.TxID
	doc.LedgerBlock = tx.Block
	doc.HasLedgerBlock = true
}

// verifyStoredDigest re-hashes the just-persisted copy of a CRITICAL
// document and compares it against the digest computed while streaming
// the upload. The two computations are independent passes over
// (hopefully) the same bytes — the primary/secondary algorithm pair spec.md
// §4.3 requires for CRITICAL — and any mismatch on either algorithm is a
// fatal ingest error (apperr.ErrDualHashDivergence) since it means the
// persisted copy and the hashed copy disagree.
func (s *Service) verifyStoredDigest(ctx context.Context, ref string, original hashing.Result, primaryAlgo, secondaryAlgo model.DigestAlgo) error {
	rc, err := s.Files.Open(ctx, ref)
	if err != nil {
		return apperr.Internal("reopen stored document for integrity check", err)
	}
	defer rc.Close()

	readBack, err := s.hash(ctx, rc, primaryAlgo, secondaryAlgo)
	if err != nil {
		return apperr.Internal("re-hash stored document", err)
	}
	if !bytes.Equal(readBack.Primary.Bytes, original.Primary.Bytes) {
		return apperr.Wrap(apperr.KindIntegrity, "primary digest diverged after storage", apperr.ErrDualHashDivergence)
	}
	if original.Secondary != nil && (readBack.Secondary == nil || !bytes.Equal(readBack.Secondary.Bytes, original.Secondary.Bytes)) {
		return apperr.Wrap(apperr.KindIntegrity, "secondary digest diverged after storage", apperr.ErrDualHashDivergence)
	}
	return nil
}
