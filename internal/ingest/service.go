// Package ingest implements Document Ingest (spec.md §4.5): upload,
// get/list, update, revoke, and the post-upload sign orchestration tying
// internal/signature, internal/ledger, and the metadata store together.
//
// Every dependency is a narrow interface so tests substitute in-memory
// fakes instead of a live database or ledger, mirroring the same
// interface-per-concern shape used by internal/ledger and internal/identity.
package ingest

import (
	"context"
	"database/sql"
	"io"

	"github.com/versafe/versafe-core/internal/filestore"
	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/logging"
	"github.com/versafe/versafe-core/internal/metrics"
	"github.com/versafe/versafe-core/internal/scanner"
	"github.com/versafe/versafe-core/internal/signature"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
	"github.com/versafe/versafe-core/internal/workpool"
)

// DocumentStore is the persistence surface Service needs for documents;
// *postgres.Documents satisfies it.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id idgen.ID) (*model.Document, error)
	List(ctx context.Context, f postgres.ListFilter) ([]*model.Document, int, error)
	SetLedgerTx(ctx context.Context, id idgen.ID, txID string, block int64) error
	SetState(ctx context.Context, id idgen.ID, from, to model.DocumentState) (bool, error)
	SetStateTx(ctx context.Context, tx *sql.Tx, id idgen.ID, from, to model.DocumentState) (bool, error)
	Revoke(ctx context.Context, id idgen.ID, reason string) error
	LockForUpdate(ctx context.Context, tx *sql.Tx, id idgen.ID) (*model.Document, error)
	ListPendingRegistration(ctx context.Context) ([]*model.Document, error)
}

// SignatureStore is the persistence surface Service needs for signatures;
// *postgres.Signatures satisfies it.
type SignatureStore interface {
	Create(ctx context.Context, tx *sql.Tx, sig *model.Signature) error
	SetLedgerTx(ctx context.Context, id idgen.ID, txID string) error
	ListByDocument(ctx context.Context, documentID idgen.ID) ([]*model.Signature, error)
	CountValid(ctx context.Context, tx *sql.Tx, documentID idgen.ID) (int, error)
	Get(ctx context.Context, id idgen.ID) (*model.Signature, error)
}

// MetadataStore is the persistence surface for document_metadata;
// *postgres.Metadata satisfies it.
type MetadataStore interface {
	PutAll(ctx context.Context, documentID idgen.ID, kv map[string]string) error
	Get(ctx context.Context, documentID idgen.ID) (map[string]string, error)
}

// TxRunner runs a function inside a database transaction; *postgres.DB
// satisfies it via WithTx.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sql.Tx) error) error
}

// LedgerGateway is the subset of *ledger.Gateway Service calls.
type LedgerGateway interface {
	Register(ctx context.Context, documentID idgen.ID, digest []byte, algo, ownerID, fileName string) (*model.LedgerTransaction, bool, error)
	UpdateState(ctx context.Context, documentID idgen.ID, newState model.DocumentState, metadata map[string]string) (*model.LedgerTransaction, bool, error)
	RecordSignature(ctx context.Context, documentID idgen.ID, signatureID, signerID string, signerHash []byte) (*model.LedgerTransaction, bool, error)
	Revoke(ctx context.Context, documentID idgen.ID, reason string) (*model.LedgerTransaction, bool, error)
	Query(ctx context.Context, documentID idgen.ID) (*model.LedgerTransaction, error)
	HasPending(documentID idgen.ID) (bool, error)
}

// ScannerClient is the subset of *scanner.Client Service calls.
type ScannerClient interface {
	Scan(ctx context.Context, digest []byte, mediaType string, content []byte) (scanner.Result, bool)
}

// Auditor records one append-only audit entry. internal/core's
// ingestAuditor adapter implements this over internal/audit's Logger;
// Service works fine with a nil Auditor (entries are silently skipped).
type Auditor interface {
	Record(ctx context.Context, e AuditEntry) error
}

// AuditEntry is the information Service hands to an Auditor for one
// mutating operation (spec.md §4.8: "request/response metadata").
type AuditEntry struct {
	Action       string
	UserID       idgen.ID
	ResourceKind string
	ResourceID   string
	RequestMeta  map[string]string
	StatusCode   int
}

// Config bundles Service's tunables, sourced from internal/config.Config.
type Config struct {
	MaxUploadBytes    int64
	AllowedMediaTypes []string
}

// Service implements Document Ingest.
type Service struct {
	Documents  DocumentStore
	Signatures SignatureStore
	Metadata   MetadataStore
	Tx         TxRunner
	Files      filestore.Store
	Hasher     *hashing.Hasher
	Scanner    ScannerClient
	Ledger     LedgerGateway
	Signer     *signature.Engine
	Audit      Auditor
	Log        *logging.Logger
	// Pool, when set, runs the hashing step of Upload on the bounded
	// CPU-bound worker pool (spec.md §5) instead of inline on the
	// handler's own goroutine. Left nil by NewService; internal/core
	// wires it in for production use. A nil Pool runs hashing inline,
	// which is what every test in this package except
	// TestUploadRunsHashingOnConfiguredPool does.
	Pool *workpool.Pool

	// Metrics is optional, set by internal/core after construction
	// (mirrors Pool above); a nil Metrics skips every observation.
	Metrics *metrics.Registry

	maxUploadBytes    int64
	allowedMediaTypes map[string]bool
}

func NewService(documents DocumentStore, signatures SignatureStore, metadata MetadataStore, tx TxRunner,
	files filestore.Store, hasher *hashing.Hasher, scan ScannerClient, ledger LedgerGateway,
	signer *signature.Engine, audit Auditor, log *logging.Logger, cfg Config) *Service {
	allowed := make(map[string]bool, len(cfg.AllowedMediaTypes))
	for _, mt := range cfg.AllowedMediaTypes {
		allowed[mt] = true
	}
	return &Service{
		Documents:         documents,
		Signatures:        signatures,
		Metadata:          metadata,
		Tx:                tx,
		Files:             files,
		Hasher:            hasher,
		Scanner:           scan,
		Ledger:            ledger,
		Signer:            signer,
		Audit:             audit,
		Log:               log,
		maxUploadBytes:    cfg.MaxUploadBytes,
		allowedMediaTypes: allowed,
	}
}

func (s *Service) audit(ctx context.Context, e AuditEntry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, e); err != nil && s.Log != nil {
		s.Log.Warn("audit record failed", "action", e.Action, "error", err.Error())
	}
}

func (s *Service) logWarn(msg string, kv ...interface{}) {
	if s.Log != nil {
		s.Log.Warn(msg, kv...)
	}
}

// hash runs the Hasher on s.Pool when one is configured, so the CPU-bound
// digest computation competes for a core-count-bounded slot rather than
// running unbounded on the handler's own goroutine (spec.md §5).
func (s *Service) hash(ctx context.Context, r io.Reader, primaryAlgo, secondaryAlgo model.DigestAlgo) (hashing.Result, error) {
	if s.Pool == nil {
		return s.Hasher.Hash(r, primaryAlgo, secondaryAlgo)
	}
	v, err := s.Pool.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.Hasher.Hash(r, primaryAlgo, secondaryAlgo)
	})
	if err != nil {
		return hashing.Result{}, err
	}
	return v.(hashing.Result), nil
}
