package verification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/logging"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[idgen.ID]*model.Document
}

func newMemDocs() *memDocs { return &memDocs{docs: map[idgen.ID]*model.Document{}} }

func (m *memDocs) put(doc *model.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
}

func (m *memDocs) GetByID(_ context.Context, id idgen.ID) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocs) SetState(_ context.Context, id idgen.ID, from, to model.DocumentState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return false, postgres.ErrNotFound
	}
	if doc.State != from {
		return false, nil
	}
	doc.State = to
	return true, nil
}

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (f *memFiles) put(ref string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[ref] = data
}

func (f *memFiles) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[ref]
	if !ok {
		return nil, fmt.Errorf("memFiles: no such ref %s", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memEvents struct {
	mu     sync.Mutex
	events []*model.VerificationEvent
}

func newMemEvents() *memEvents { return &memEvents{} }

func (e *memEvents) Append(_ context.Context, evt *model.VerificationEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	return nil
}

type fakeLedger struct {
	mu  sync.Mutex
	tx  map[idgen.ID]*model.LedgerTransaction
	err error
}

func newFakeLedger() *fakeLedger { return &fakeLedger{tx: map[idgen.ID]*model.LedgerTransaction{}} }

func (f *fakeLedger) Query(_ context.Context, documentID idgen.ID) (*model.LedgerTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	tx, ok := f.tx[documentID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "no ledger record for document")
	}
	return tx, nil
}

func (f *fakeLedger) UpdateState(_ context.Context, documentID idgen.ID, newState model.DocumentState, _ map[string]string) (*model.LedgerTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &model.LedgerTransaction{TxID: "tx-verified", DocumentID: documentID, Status: model.LedgerStatusConfirmed}
	return tx, false, nil
}

func newFixture(t *testing.T) (*Service, *memDocs, *memFiles, *fakeLedger) {
	t.Helper()
	docs := newMemDocs()
	files := newMemFiles()
	events := newMemEvents()
	ledger := newFakeLedger()
	svc := NewService(docs, events, files, hashing.New(), ledger, nil, logging.New(io.Discard, "test"))
	return svc, docs, files, ledger
}

func seedDocument(t *testing.T, docs *memDocs, files *memFiles, ledger *fakeLedger, content []byte, state model.DocumentState) *model.Document {
	t.Helper()
	h := hashing.New()
	result, err := h.Hash(bytes.NewReader(content), model.AlgoSHA256, "")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	doc := &model.Document{
		ID: idgen.New(), OwnerID: idgen.New(), StorageRef: "ref-1",
		DigestAlgo: model.AlgoSHA256, Digest: result.Primary.Bytes,
		SecurityLevel: model.SecurityLow, SignaturesRequired: 1, State: state,
	}
	docs.put(doc)
	files.put(doc.StorageRef, content)
	ledger.tx[doc.ID] = &model.LedgerTransaction{TxID: "tx-1", DocumentID: doc.ID, Status: model.LedgerStatusConfirmed}
	return doc
}

func TestVerifyMatchOnCleanDocument(t *testing.T) {
	svc, docs, files, ledger := newFixture(t)
	doc := seedDocument(t, docs, files, ledger, []byte("hello"), model.StateUploaded)

	result, err := svc.Verify(context.Background(), doc.ID, idgen.New())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Outcome != model.VerificationMatch {
		t.Fatalf("Outcome = %s, want MATCH", result.Outcome)
	}
}

func TestVerifyTransitionsSignedToVerifiedOnMatch(t *testing.T) {
	svc, docs, files, ledger := newFixture(t)
	doc := seedDocument(t, docs, files, ledger, []byte("hello"), model.StateSigned)

	result, err := svc.Verify(context.Background(), doc.ID, idgen.New())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Outcome != model.VerificationMatch {
		t.Fatalf("Outcome = %s, want MATCH", result.Outcome)
	}
	if result.Document.State != model.StateVerified {
		t.Fatalf("State = %s, want VERIFIED", result.Document.State)
	}
}

func TestVerifyDetectsDigestMismatchAndQuarantines(t *testing.T) {
	svc, docs, files, ledger := newFixture(t)
	doc := seedDocument(t, docs, files, ledger, []byte("hello"), model.StateUploaded)
	files.put(doc.StorageRef, []byte("tampered"))

	result, err := svc.Verify(context.Background(), doc.ID, idgen.New())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Outcome != model.VerificationDigestMismatch {
		t.Fatalf("Outcome = %s, want DIGEST_MISMATCH", result.Outcome)
	}
	if result.Document.State != model.StateQuarantined {
		t.Fatalf("State = %s, want QUARANTINED", result.Document.State)
	}

	got, err := docs.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != model.StateQuarantined {
		t.Fatalf("persisted State = %s, want QUARANTINED", got.State)
	}
}

func TestVerifyReturnsNotFoundForUnknownDocument(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	result, err := svc.Verify(context.Background(), idgen.New(), idgen.New())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Outcome != model.VerificationNotFound {
		t.Fatalf("Outcome = %s, want NOT_FOUND", result.Outcome)
	}
}

func TestVerifyReturnsLedgerUnavailableWithoutMutatingState(t *testing.T) {
	svc, docs, files, ledger := newFixture(t)
	doc := seedDocument(t, docs, files, ledger, []byte("hello"), model.StateUploaded)
	ledger.err = fmt.Errorf("ledger connection refused")

	result, err := svc.Verify(context.Background(), doc.ID, idgen.New())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Outcome != model.VerificationLedgerUnavailable {
		t.Fatalf("Outcome = %s, want LEDGER_UNAVAILABLE", result.Outcome)
	}

	got, err := docs.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != model.StateUploaded {
		t.Fatalf("State = %s, want unchanged UPLOADED", got.State)
	}
}

func TestVerifyDetectsLedgerMismatchWhenNoRecordExists(t *testing.T) {
	svc, docs, files, ledger := newFixture(t)
	doc := seedDocument(t, docs, files, ledger, []byte("hello"), model.StateUploaded)
	delete(ledger.tx, doc.ID)

	result, err := svc.Verify(context.Background(), doc.ID, idgen.New())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Outcome != model.VerificationLedgerMismatch {
		t.Fatalf("Outcome = %s, want LEDGER_MISMATCH", result.Outcome)
	}
}
