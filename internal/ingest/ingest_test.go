package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/scanner"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// memDocumentStore is an in-memory DocumentStore fake, mirroring the
// memTxStore pattern already used in internal/ledger's tests.
type memDocumentStore struct {
	mu   sync.Mutex
	docs map[idgen.ID]*model.Document
}

func newMemDocumentStore() *memDocumentStore {
	return &memDocumentStore{docs: map[idgen.ID]*model.Document{}}
}

func (m *memDocumentStore) Create(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocumentStore) GetByID(_ context.Context, id idgen.ID) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocumentStore) List(_ context.Context, f postgres.ListFilter) ([]*model.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Document
	for _, d := range m.docs {
		if d.OwnerID != f.OwnerID || d.State == model.StateQuarantined {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memDocumentStore) SetLedgerTx(_ context.Context, id idgen.ID, txID string, block int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return postgres.ErrNotFound
	}
	if doc.LedgerTxID == "" {
		doc.LedgerTxID = txID
		doc.LedgerBlock = block
		doc.HasLedgerBlock = true
	}
	return nil
}

func (m *memDocumentStore) setState(id idgen.ID, from, to model.DocumentState) (bool, error) {
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

func (m *memDocumentStore) SetState(_ context.Context, id idgen.ID, from, to model.DocumentState) (bool, error) {
	return m.setState(id, from, to)
}

func (m *memDocumentStore) SetStateTx(_ context.Context, _ *sql.Tx, id idgen.ID, from, to model.DocumentState) (bool, error) {
	return m.setState(id, from, to)
}

func (m *memDocumentStore) Revoke(_ context.Context, id idgen.ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return postgres.ErrNotFound
	}
	doc.State = model.StateRevoked
	doc.RevokedReason = reason
	return nil
}

func (m *memDocumentStore) LockForUpdate(_ context.Context, _ *sql.Tx, id idgen.ID) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocumentStore) ListPendingRegistration(_ context.Context) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Document
	for _, d := range m.docs {
		if d.State == model.StateRegistrationPending {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memSignatureStore is an in-memory SignatureStore fake.
type memSignatureStore struct {
	mu   sync.Mutex
	sigs map[idgen.ID]*model.Signature
}

func newMemSignatureStore() *memSignatureStore {
	return &memSignatureStore{sigs: map[idgen.ID]*model.Signature{}}
}

func (m *memSignatureStore) Create(_ context.Context, _ *sql.Tx, sig *model.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sigs {
		if s.DocumentID == sig.DocumentID && s.SignerID == sig.SignerID {
			return postgres.ErrDuplicate
		}
	}
	cp := *sig
	m.sigs[sig.ID] = &cp
	return nil
}

func (m *memSignatureStore) SetLedgerTx(_ context.Context, id idgen.ID, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.sigs[id]
	if !ok {
		return postgres.ErrNotFound
	}
	sig.LedgerTxID = txID
	sig.HasLedgerTx = true
	return nil
}

func (m *memSignatureStore) ListByDocument(_ context.Context, documentID idgen.ID) ([]*model.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Signature
	for _, s := range m.sigs {
		if s.DocumentID == documentID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSignatureStore) CountValid(_ context.Context, _ *sql.Tx, documentID idgen.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sigs {
		if s.DocumentID == documentID && s.Verified {
			n++
		}
	}
	return n, nil
}

func (m *memSignatureStore) Get(_ context.Context, id idgen.ID) (*model.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.sigs[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *sig
	return &cp, nil
}

// memMetadataStore is an in-memory MetadataStore fake.
type memMetadataStore struct {
	mu   sync.Mutex
	data map[idgen.ID]map[string]string
}

func newMemMetadataStore() *memMetadataStore {
	return &memMetadataStore{data: map[idgen.ID]map[string]string{}}
}

func (m *memMetadataStore) PutAll(_ context.Context, documentID idgen.ID, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.data[documentID]
	if !ok {
		existing = map[string]string{}
		m.data[documentID] = existing
	}
	for k, v := range kv {
		existing[k] = v
	}
	return nil
}

func (m *memMetadataStore) Get(_ context.Context, documentID idgen.ID) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.data[documentID] {
		out[k] = v
	}
	return out, nil
}

// fakeTxRunner runs fn directly against a nil *sql.Tx: the in-memory
// stores ignore it, matching how gateway_test.go's fakes sidestep a live
// database.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(*sql.Tx) error) error {
	return fn(nil)
}

// memFilestore is an in-memory filestore.Store fake.
type memFilestore struct {
	mu    sync.Mutex
	files map[string][]byte
	seq   int
	// corruptNextPut, when true, flips one byte of the next Put's bytes
	// on read-back, simulating storage corruption for the dual-hash test.
	corruptNextPut bool
}

func newMemFilestore() *memFilestore { return &memFilestore{files: map[string][]byte{}} }

func (f *memFilestore) Put(_ context.Context, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	f.seq++
	ref := fmt.Sprintf("ref-%d", f.seq)
	stored := append([]byte(nil), data...)
	if f.corruptNextPut && len(stored) > 0 {
		stored[0] ^= 0xFF
		f.corruptNextPut = false
	}
	f.files[ref] = stored
	f.mu.Unlock()
	return ref, int64(len(data)), nil
}

func (f *memFilestore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[ref]
	if !ok {
		return nil, fmt.Errorf("memFilestore: no such ref %s", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *memFilestore) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, ref)
	return nil
}

// fakeScanner is a ScannerClient fake returning a fixed verdict.
type fakeScanner struct {
	result    scanner.Result
	reachable bool
}

func (f fakeScanner) Scan(_ context.Context, _ []byte, _ string, _ []byte) (scanner.Result, bool) {
	return f.result, f.reachable
}

// fakeLedgerGateway is a LedgerGateway fake with independently
// configurable per-call failure and a tiny in-memory tx/outbox model
// sufficient for upload/sign/reconcile tests.
type fakeLedgerGateway struct {
	mu           sync.Mutex
	registerFail bool
	seq          int
	pending      map[idgen.ID]bool
	latest       map[idgen.ID]*model.LedgerTransaction
}

func newFakeLedgerGateway() *fakeLedgerGateway {
	return &fakeLedgerGateway{pending: map[idgen.ID]bool{}, latest: map[idgen.ID]*model.LedgerTransaction{}}
}

func (f *fakeLedgerGateway) nextTxID() string {
	f.seq++
	return fmt.Sprintf("tx-%d", f.seq)
}

func (f *fakeLedgerGateway) Register(_ context.Context, documentID idgen.ID, digest []byte, _, _, _ string) (*model.LedgerTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerFail {
		f.pending[documentID] = true
		return nil, false, fmt.Errorf("ledger unreachable")
	}
	tx := &model.LedgerTransaction{TxID: f.nextTxID(), DocumentID: documentID, PayloadHash: digest, Status: model.LedgerStatusConfirmed}
	f.latest[documentID] = tx
	return tx, false, nil
}

func (f *fakeLedgerGateway) UpdateState(_ context.Context, documentID idgen.ID, _ model.DocumentState, _ map[string]string) (*model.LedgerTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &model.LedgerTransaction{TxID: f.nextTxID(), DocumentID: documentID, Status: model.LedgerStatusConfirmed}
	f.latest[documentID] = tx
	return tx, false, nil
}

func (f *fakeLedgerGateway) RecordSignature(_ context.Context, documentID idgen.ID, _, _ string, _ []byte) (*model.LedgerTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &model.LedgerTransaction{TxID: f.nextTxID(), DocumentID: documentID, Status: model.LedgerStatusConfirmed}
	return tx, false, nil
}

func (f *fakeLedgerGateway) Revoke(_ context.Context, documentID idgen.ID, _ string) (*model.LedgerTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &model.LedgerTransaction{TxID: f.nextTxID(), DocumentID: documentID, Status: model.LedgerStatusConfirmed}
	return tx, false, nil
}

func (f *fakeLedgerGateway) Query(_ context.Context, documentID idgen.ID) (*model.LedgerTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.latest[documentID]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return tx, nil
}

func (f *fakeLedgerGateway) HasPending(documentID idgen.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[documentID], nil
}

// clearPendingAndConfirm simulates the background flusher catching up a
// previously-failed register call for documentID.
func (f *fakeLedgerGateway) clearPendingAndConfirm(documentID idgen.ID, digest []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, documentID)
	tx := &model.LedgerTransaction{TxID: f.nextTxID(), DocumentID: documentID, PayloadHash: digest, Status: model.LedgerStatusConfirmed}
	f.latest[documentID] = tx
}
