// Package verification implements the Verification Service (spec.md
// §4.7): re-stream the stored bytes, recompute the digest, cross-check
// the Ledger Gateway, and record the outcome.
package verification

import (
	"context"
	"io"

	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/logging"
	"github.com/versafe/versafe-core/internal/metrics"
	"github.com/versafe/versafe-core/internal/store/model"
)

// DocumentStore is the persistence surface Service needs from Document
// Ingest's store. A narrow interface, mirroring the boundary already used
// between internal/ledger and its TxStore.
type DocumentStore interface {
	GetByID(ctx context.Context, id idgen.ID) (*model.Document, error)
	SetState(ctx context.Context, id idgen.ID, from, to model.DocumentState) (bool, error)
}

// EventStore persists the append-only verification_events log;
// postgres.VerificationEvents satisfies it.
type EventStore interface {
	Append(ctx context.Context, e *model.VerificationEvent) error
}

// Filestore is the read-only surface Service needs; internal/filestore's
// Store and Document Ingest's memFilestore-style fakes both satisfy it.
type Filestore interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Hasher is the narrow surface Service needs from internal/hashing.Hasher.
type Hasher interface {
	Hash(r io.Reader, primaryAlgo, secondaryAlgo model.DigestAlgo) (hashing.Result, error)
}

// LedgerGateway is the narrow surface Service needs from
// internal/ledger.Gateway: query the authoritative record and, on a MATCH
// against a SIGNED document, submit the outbox-safe VERIFIED transition.
type LedgerGateway interface {
	Query(ctx context.Context, documentID idgen.ID) (*model.LedgerTransaction, error)
	UpdateState(ctx context.Context, documentID idgen.ID, newState model.DocumentState, metadata map[string]string) (*model.LedgerTransaction, bool, error)
}

// AuditEntry mirrors internal/ingest.AuditEntry's shape; kept as a
// separate type so internal/verification never imports internal/ingest.
type AuditEntry struct {
	Action       string
	UserID       idgen.ID
	ResourceKind string
	ResourceID   string
	RequestMeta  map[string]string
	StatusCode   int
}

// Auditor is the narrow surface Service needs to emit security audit
// records on tamper detection (spec.md §7: "Integrity is fatal ... a
// security audit record is emitted").
type Auditor interface {
	Record(ctx context.Context, e AuditEntry) error
}

// Service implements verify(document_id) -> VerificationResult.
type Service struct {
	Documents DocumentStore
	Events    EventStore
	Files     Filestore
	Hasher    Hasher
	Ledger    LedgerGateway
	Audit     Auditor
	Log       *logging.Logger

	// Metrics is optional, set by internal/core after construction; a
	// nil Metrics skips every observation.
	Metrics *metrics.Registry
}

func NewService(documents DocumentStore, events EventStore, files Filestore, hasher Hasher, ledger LedgerGateway, audit Auditor, log *logging.Logger) *Service {
	return &Service{Documents: documents, Events: events, Files: files, Hasher: hasher, Ledger: ledger, Audit: audit, Log: log}
}

func (s *Service) audit(ctx context.Context, e AuditEntry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, e); err != nil && s.Log != nil {
		s.Log.Warn("audit record failed", "action", e.Action, "resource_id", e.ResourceID, "error", err.Error())
	}
}

func (s *Service) logWarn(msg string, kv ...interface{}) {
	if s.Log != nil {
		s.Log.Warn(msg, kv...)
	}
}
